package main

import (
	"github.com/spf13/cobra"

	"github.com/daniela/compliance-reviewer/internal/rubric"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Print the audit checklist",
	RunE: func(_ *cobra.Command, _ []string) error {
		registry, err := rubric.Load()
		if err != nil {
			return err
		}
		questions := make([]rubric.Question, 0, registry.Len())
		for _, n := range registry.Numbers() {
			if q, ok := registry.Get(n); ok {
				questions = append(questions, q)
			}
		}
		return printJSON(questions)
	},
}

func init() {
	rootCmd.AddCommand(questionsCmd)
}
