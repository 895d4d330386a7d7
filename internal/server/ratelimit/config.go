package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// EndpointConfig limits one endpoint. Path supports prefix matching when it
// ends with a slash.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int // requests per window
	Window time.Duration
	Burst  int // burst capacity, defaults to Limit
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	if !getEnvBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 600),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the per-endpoint limits. Endpoints that
// trigger an LLM review are the expensive tier.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Expensive: each request costs an LLM call.
		{Path: "/subjects/", Method: "POST", Limit: 60, Window: time.Hour, Burst: 10},

		// Writes without LLM cost.
		{Path: "/subjects/", Method: "PUT", Limit: 120, Window: time.Minute, Burst: 20},
		{Path: "/auditors", Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},
		{Path: "/auditors/", Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},

		// Reads fall through to the default limit; /health is unlimited
		// via a special case in MatchEndpoint.
	}
}

// MatchEndpoint matches a request path and method to an endpoint
// configuration, nil when only the default applies.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		return &EndpointConfig{} // unlimited
	}

	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			return c
		}
	}
	return nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
