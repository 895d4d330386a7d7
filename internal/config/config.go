// Package config provides configuration loading and validation for the
// review service and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/daniela/compliance-reviewer/internal/identity"
)

// Store backend names accepted in configuration.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config is the service configuration loadable from a JSON file. All fields
// are optional; missing values use defaults or must be provided via CLI
// flags or environment.
type Config struct {
	// Server
	Port int `json:"port,omitempty"` // HTTP listen port

	// Storage
	StoreBackend string `json:"store_backend,omitempty"` // "postgres" or "sqlite"
	DatabaseURL  string `json:"database_url,omitempty"`  // PostgreSQL connection URL
	SQLitePath   string `json:"sqlite_path,omitempty"`   // SQLite database file

	// External services
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	OCREndpoint string `json:"ocr_endpoint,omitempty"` // OCR service URL; empty disables scanned-document support
	OCRAPIKey   string `json:"ocr_api_key,omitempty"`  // bearer token for the OCR service

	// Review behavior
	IdentityStrategy   string `json:"identity_strategy,omitempty"`   // "exact" or "token-overlap"
	OnboardingQuestion int    `json:"onboarding_question,omitempty"` // question whose document registers the identity

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values. Required fields
// are not checked here; CLI flag validation handles those after merging.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "", BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("config error: unknown store backend %q", c.StoreBackend)
	}

	if c.StoreBackend == BackendPostgres && c.DatabaseURL == "" && c.SQLitePath != "" {
		return fmt.Errorf("config error: 'sqlite_path' is set but the backend is %q", BackendPostgres)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: port out of range: %d", c.Port)
	}

	if c.OnboardingQuestion < 0 {
		return fmt.Errorf("config error: 'onboarding_question' must be non-negative")
	}

	if _, ok := identity.ParseStrategy(c.IdentityStrategy); !ok {
		return fmt.Errorf("config error: unknown identity strategy %q", c.IdentityStrategy)
	}

	return nil
}

// MergeWithDefaults returns a new Config with unset fields filled from
// defaults. This is used to apply config file values as defaults for CLI
// flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.StoreBackend == "" {
		result.StoreBackend = defaults.StoreBackend
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.SQLitePath == "" {
		result.SQLitePath = defaults.SQLitePath
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.OCREndpoint == "" {
		result.OCREndpoint = defaults.OCREndpoint
	}
	if result.OCRAPIKey == "" {
		result.OCRAPIKey = defaults.OCRAPIKey
	}
	if result.IdentityStrategy == "" {
		result.IdentityStrategy = defaults.IdentityStrategy
	}

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.OnboardingQuestion == 0 {
		result.OnboardingQuestion = defaults.OnboardingQuestion
	}

	// Bool fields: cannot distinguish unset from false, so CLI flags
	// always win for those.

	return result
}
