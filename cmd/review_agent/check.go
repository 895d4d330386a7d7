package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daniela/compliance-reviewer/internal/extraction"
	"github.com/daniela/compliance-reviewer/internal/identity"
	"github.com/daniela/compliance-reviewer/internal/llm"
	"github.com/daniela/compliance-reviewer/internal/review"
	"github.com/daniela/compliance-reviewer/internal/rubric"
	"github.com/daniela/compliance-reviewer/internal/store"
)

var (
	checkSubject     string
	checkQuestion    int
	checkFile        string
	checkExplanation string
	checkLanguage    string
	checkSQLitePath  string
	checkStrategy    string
	checkOnboarding  int
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Review one document against one checklist question",
	Long: `Review a single document file for a subject and persist the verdict in a
local SQLite database. Prints the verdict as JSON.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkSubject, "subject", "", "Subject identifier, e.g. the supplier contact email")
	checkCmd.Flags().IntVar(&checkQuestion, "question", 0, "Checklist question number")
	checkCmd.Flags().StringVar(&checkFile, "file", "", "Path to the document")
	checkCmd.Flags().StringVar(&checkExplanation, "explanation", "", "Optional supplier explanation accompanying the document")
	checkCmd.Flags().StringVar(&checkLanguage, "language", "", "Language hint for OCR")
	checkCmd.Flags().StringVar(&checkSQLitePath, "sqlite-path", "review.db", "SQLite database file")
	checkCmd.Flags().StringVar(&checkStrategy, "identity-strategy", "", "Identity match strategy: exact or token-overlap")
	checkCmd.Flags().IntVar(&checkOnboarding, "onboarding-question", review.DefaultOnboardingQuestion, "Question whose document registers the company identity")
	_ = checkCmd.MarkFlagRequired("subject")
	_ = checkCmd.MarkFlagRequired("question")
	_ = checkCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(checkCmd)
}

// buildLocalService wires a review service backed by local SQLite for
// one-shot CLI commands. The caller must invoke the returned cleanup.
func buildLocalService(ctx context.Context, sqlitePath, strategyName string, onboarding int) (*review.Service, func(), error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	strategy, ok := identity.ParseStrategy(strategyName)
	if !ok {
		return nil, nil, fmt.Errorf("unknown identity strategy %q", strategyName)
	}

	st, err := store.OpenSQLite(sqlitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	client, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), apiKey)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	registry, err := rubric.Load()
	if err != nil {
		st.Close()
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to load checklist: %w", err)
	}

	log := newLogger()

	var ocr *extraction.OCRClient
	if endpoint := os.Getenv("OCR_ENDPOINT"); endpoint != "" {
		ocr = extraction.NewOCRClient(endpoint, os.Getenv("OCR_API_KEY"), log)
	}
	extractor := extraction.NewFileExtractor(ocr, log)

	svc := review.NewService(st, client, registry, identity.NewMatcher(strategy), extractor, onboarding, log)
	cleanup := func() {
		_ = client.Close()
		_ = st.Close()
	}
	return svc, cleanup, nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	svc, cleanup, err := buildLocalService(ctx, checkSQLitePath, checkStrategy, checkOnboarding)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := svc.CheckDocumentFile(ctx, review.FileCheckRequest{
		SubjectID:      checkSubject,
		QuestionNumber: checkQuestion,
		Path:           checkFile,
		DeclaredName:   checkFile,
		LanguageHint:   checkLanguage,
		Explanation:    checkExplanation,
	})
	if err != nil {
		return err
	}

	return printJSON(result)
}

// printJSON writes indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
