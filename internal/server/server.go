package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daniela/compliance-reviewer/internal/config"
	"github.com/daniela/compliance-reviewer/internal/extraction"
	"github.com/daniela/compliance-reviewer/internal/identity"
	"github.com/daniela/compliance-reviewer/internal/llm"
	"github.com/daniela/compliance-reviewer/internal/review"
	"github.com/daniela/compliance-reviewer/internal/rubric"
	"github.com/daniela/compliance-reviewer/internal/server/middleware"
	"github.com/daniela/compliance-reviewer/internal/server/ratelimit"
	"github.com/daniela/compliance-reviewer/internal/store"
)

// Server is the HTTP front-end over the review service.
type Server struct {
	httpServer     *http.Server
	store          store.Store
	reviewService  *review.Service
	registry       *rubric.Registry
	llmClient      llm.Client
	rateLimiter    *ratelimit.Limiter
	jwtService     *JWTService
	auditorService *AuditorService
	authHandler    *AuthHandler
	log            *logrus.Logger
}

// Config holds server configuration.
type Config struct {
	Port               int
	StoreBackend       string
	DatabaseURL        string
	SQLitePath         string
	APIKey             string
	OCREndpoint        string
	OCRAPIKey          string
	IdentityStrategy   string
	OnboardingQuestion int
}

// New creates a server instance: it connects the configured store backend,
// the Gemini client, and the optional OCR service.
func New(cfg Config, log *logrus.Logger) (*Server, error) {
	if log == nil {
		log = logrus.New()
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewGeminiClient(context.Background(), llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	var ocr *extraction.OCRClient
	if cfg.OCREndpoint != "" {
		ocr = extraction.NewOCRClient(cfg.OCREndpoint, cfg.OCRAPIKey, log)
	}
	extractor := extraction.NewFileExtractor(ocr, log)

	registry, err := rubric.Load()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load checklist: %w", err)
	}

	strategy, ok := identity.ParseStrategy(cfg.IdentityStrategy)
	if !ok {
		st.Close()
		return nil, fmt.Errorf("unknown identity strategy %q", cfg.IdentityStrategy)
	}

	svc := review.NewService(st, client, registry, identity.NewMatcher(strategy), extractor, cfg.OnboardingQuestion, log)

	s, err := assemble(st, svc, registry, client, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // reviews wait on the LLM
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func openStore(cfg Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		st, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	case config.BackendPostgres, "":
		st, err := store.ConnectPostgres(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// assemble wires the request-handling pieces. Split from New so tests can
// build a server around fakes.
func assemble(st store.Store, svc *review.Service, registry *rubric.Registry, client llm.Client, log *logrus.Logger) (*Server, error) {
	s := &Server{
		store:         st,
		reviewService: svc,
		registry:      registry,
		llmClient:     client,
		log:           log,
	}

	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig())

	passwordConfig, err := config.NewPasswordConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create password config: %w", err)
	}
	s.auditorService = NewAuditorService(st, passwordConfig)

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}
	s.jwtService = NewJWTService(jwtConfig)
	s.authHandler = NewAuthHandler(s.auditorService, s.jwtService)

	return s, nil
}

// handler builds the route table with middleware applied.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Checklist
	mux.HandleFunc("GET /rubric", s.handleListQuestions)
	mux.HandleFunc("GET /rubric/{number}", s.handleGetQuestion)

	// Document review
	mux.HandleFunc("POST /subjects/{subject_id}/documents", s.handleUploadDocument)
	mux.HandleFunc("POST /subjects/{subject_id}/documents/text", s.handleCheckText)

	// Identity
	mux.HandleFunc("PUT /subjects/{subject_id}/identity", s.handleSetIdentity)
	mux.HandleFunc("GET /subjects/{subject_id}/identity", s.handleGetIdentity)

	// Verdicts and session roll-up
	mux.HandleFunc("GET /subjects/{subject_id}/verdicts", s.handleListVerdicts)
	mux.HandleFunc("GET /subjects/{subject_id}/session", s.handleSession)

	// Disputes and missing-document justifications
	mux.HandleFunc("POST /subjects/{subject_id}/disagreements", s.handleDisagreement)
	mux.HandleFunc("GET /subjects/{subject_id}/disagreements", s.handleListDisagreements)
	mux.HandleFunc("POST /subjects/{subject_id}/missing-justifications", s.handleMissingJustification)

	// Auditor accounts
	mux.HandleFunc("POST /auditors", s.authHandler.Register)
	mux.HandleFunc("POST /auditors/login", s.authHandler.Login)

	// Manual overrides require an authenticated auditor.
	auth := middleware.Auth(s.jwtService.AsTokenValidator())
	mux.Handle("POST /subjects/{subject_id}/overrides", auth(http.HandlerFunc(s.handleOverride)))
	mux.Handle("GET /subjects/{subject_id}/questions/{number}/overrides", auth(http.HandlerFunc(s.handleListOverrides)))

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Start begins listening for requests and blocks until shutdown.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Fatal("server error")
		}
	}()

	<-stop
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.llmClient != nil {
		_ = s.llmClient.Close()
	}
	if err := s.store.Close(); err != nil {
		s.log.WithError(err).Warn("store close failed")
	}

	s.log.Info("server stopped")
	return nil
}

// withCORS adds CORS headers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over their token budget.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"duration": time.Since(start).String(),
		}).Info("request handled")
	})
}

// extractClientID extracts the client identifier from the request. For now
// this is the IP from RemoteAddr; X-Forwarded-For would only be safe behind
// a trusted proxy.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
