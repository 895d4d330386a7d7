package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daniela/compliance-reviewer/internal/config"
	"github.com/daniela/compliance-reviewer/internal/server"
)

var serveConfigFile string

// defaultPort applies only after the config file has had its say; binding
// it as the flag default would shadow a port set in the file.
const defaultPort = 8080

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for document review, verdicts, session scores, and auditor overrides.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigFile, "config", "", "Path to JSON config file")
	serveCmd.Flags().Int("port", 0, "Port to listen on (default 8080)")
	serveCmd.Flags().String("store", "", "Store backend: postgres or sqlite")
	serveCmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	serveCmd.Flags().String("sqlite-path", "", "SQLite database file")
	serveCmd.Flags().String("ocr-endpoint", "", "OCR service URL for scanned documents")
	serveCmd.Flags().String("identity-strategy", "", "Identity match strategy: exact or token-overlap")
	serveCmd.Flags().Int("onboarding-question", 0, "Question whose document registers the company identity")

	must(viper.BindPFlag("port", serveCmd.Flags().Lookup("port")))
	must(viper.BindPFlag("store-backend", serveCmd.Flags().Lookup("store")))
	must(viper.BindPFlag("database-url", serveCmd.Flags().Lookup("database-url")))
	must(viper.BindPFlag("sqlite-path", serveCmd.Flags().Lookup("sqlite-path")))
	must(viper.BindPFlag("ocr-endpoint", serveCmd.Flags().Lookup("ocr-endpoint")))
	must(viper.BindPFlag("identity-strategy", serveCmd.Flags().Lookup("identity-strategy")))
	must(viper.BindPFlag("onboarding-question", serveCmd.Flags().Lookup("onboarding-question")))

	must(viper.BindEnv("database-url", "DATABASE_URL"))
	must(viper.BindEnv("sqlite-path", "SQLITE_PATH"))
	must(viper.BindEnv("store-backend", "STORE_BACKEND"))
	must(viper.BindEnv("api-key", "GEMINI_API_KEY"))
	must(viper.BindEnv("ocr-endpoint", "OCR_ENDPOINT"))
	must(viper.BindEnv("ocr-api-key", "OCR_API_KEY"))
	must(viper.BindEnv("identity-strategy", "IDENTITY_STRATEGY"))

	rootCmd.AddCommand(serveCmd)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// resolveConfig merges flag/env values with the optional JSON config file.
func resolveConfig() (config.Config, error) {
	cfg := config.Config{
		Port:               viper.GetInt("port"),
		StoreBackend:       viper.GetString("store-backend"),
		DatabaseURL:        viper.GetString("database-url"),
		SQLitePath:         viper.GetString("sqlite-path"),
		APIKey:             viper.GetString("api-key"),
		OCREndpoint:        viper.GetString("ocr-endpoint"),
		OCRAPIKey:          viper.GetString("ocr-api-key"),
		IdentityStrategy:   viper.GetString("identity-strategy"),
		OnboardingQuestion: viper.GetInt("onboarding-question"),
	}

	if serveConfigFile != "" {
		fileCfg, err := config.LoadConfig(serveConfigFile)
		if err != nil {
			return cfg, err
		}
		cfg = cfg.MergeWithDefaults(*fileCfg)
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if cfg.StoreBackend == config.BackendSQLite && cfg.SQLitePath == "" {
		return fmt.Errorf("sqlite backend requires a database file path")
	}
	if cfg.StoreBackend != config.BackendSQLite && cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	srv, err := server.New(server.Config{
		Port:               cfg.Port,
		StoreBackend:       cfg.StoreBackend,
		DatabaseURL:        cfg.DatabaseURL,
		SQLitePath:         cfg.SQLitePath,
		APIKey:             cfg.APIKey,
		OCREndpoint:        cfg.OCREndpoint,
		OCRAPIKey:          cfg.OCRAPIKey,
		IdentityStrategy:   cfg.IdentityStrategy,
		OnboardingQuestion: cfg.OnboardingQuestion,
	}, newLogger())
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
