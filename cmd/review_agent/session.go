package main

import (
	"github.com/spf13/cobra"

	"github.com/daniela/compliance-reviewer/internal/review"
)

var (
	sessionSubject    string
	sessionSQLitePath string
	sessionNarrative  bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Print the aggregated session score for a subject",
	Long: `Recompute the overall compliance score from all verdicts stored for a
subject and print it as JSON. The numeric score is always recomputed from
the stored feedback, never taken from LLM prose.`,
	RunE: runSession,
}

func init() {
	sessionCmd.Flags().StringVar(&sessionSubject, "subject", "", "Subject identifier")
	sessionCmd.Flags().StringVar(&sessionSQLitePath, "sqlite-path", "review.db", "SQLite database file")
	sessionCmd.Flags().BoolVar(&sessionNarrative, "narrative", false, "Include an LLM-authored prose summary")
	_ = sessionCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(sessionCmd)
}

func runSession(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	svc, cleanup, err := buildLocalService(ctx, sessionSQLitePath, "", review.DefaultOnboardingQuestion)
	if err != nil {
		return err
	}
	defer cleanup()

	score, err := svc.SummarizeSession(ctx, sessionSubject, sessionNarrative)
	if err != nil {
		return err
	}

	return printJSON(score)
}
