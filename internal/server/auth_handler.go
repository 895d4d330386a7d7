package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/daniela/compliance-reviewer/internal/store"
)

// AuthHandler handles auditor registration and login requests.
type AuthHandler struct {
	auditorService *AuditorService
	jwtService     *JWTService
	validator      *validator.Validate
}

// NewAuthHandler creates an AuthHandler with the given dependencies.
func NewAuthHandler(auditorService *AuditorService, jwtService *JWTService) *AuthHandler {
	return &AuthHandler{
		auditorService: auditorService,
		jwtService:     jwtService,
		validator:      validator.New(),
	}
}

// credentialsRequest is the body for both registration and login.
type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// loginResponse carries the auditor and a bearer token.
type loginResponse struct {
	Auditor *store.Auditor `json:"auditor"`
	Token   string         `json:"token"`
}

// Register handles auditor registration requests.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	auditor, err := h.auditorService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	h.respondWithToken(w, http.StatusCreated, auditor)
}

// Login handles auditor login requests.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	auditor, err := h.auditorService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	h.respondWithToken(w, http.StatusOK, auditor)
}

func (h *AuthHandler) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		http.Error(w, extractValidationErrors(err), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, auditor *store.Auditor) {
	token, err := h.jwtService.GenerateToken(auditor.ID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(loginResponse{Auditor: auditor, Token: token})
}

// extractValidationErrors extracts a readable message from validator errors.
func extractValidationErrors(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		ve := validationErrors[0]
		return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
	}
	return "validation error: invalid request"
}
