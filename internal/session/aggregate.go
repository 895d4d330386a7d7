// Package session rolls a subject's stored verdicts into one overall
// compliance score. The roll-up is recomputed in full on every request and
// never trusts arithmetic embedded in LLM prose.
package session

import (
	"math"
	"sort"

	"github.com/daniela/compliance-reviewer/internal/scoring"
	"github.com/daniela/compliance-reviewer/internal/store"
)

// QuestionScore is the per-question breakdown entry for auditor drill-down.
type QuestionScore struct {
	QuestionNumber int           `json:"question_number"`
	Band           *scoring.Band `json:"band"`
	Scores         []int         `json:"scores"`
	Feedback       string        `json:"feedback"`
}

// Score is the aggregate over all of a subject's verdicts. Narrative, when
// present, is LLM-authored prose for human readers; the numeric fields are
// computed here and are authoritative.
type Score struct {
	SubjectID      string          `json:"subject_id"`
	CompanyName    string          `json:"company_name,omitempty"`
	TotalWeight    int             `json:"total_weight"`
	MaxPossible    int             `json:"max_possible"`
	OverallPercent int             `json:"overall_percent"`
	Breakdown      []QuestionScore `json:"breakdown"`
	Narrative      string          `json:"narrative,omitempty"`
}

// Aggregate recomputes the session score from stored verdicts. Every
// verdict's raw feedback is rescanned for scores (a single reply may
// enumerate several sub-requirements), in ascending question-number order.
// With no parsed scores the overall percentage is 0, not undefined.
func Aggregate(subjectID string, verdicts []store.Verdict) Score {
	ordered := make([]store.Verdict, len(verdicts))
	copy(ordered, verdicts)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].QuestionNumber < ordered[j].QuestionNumber
	})

	result := Score{
		SubjectID: subjectID,
		Breakdown: make([]QuestionScore, 0, len(ordered)),
	}

	count := 0
	for _, v := range ordered {
		scores := scoring.ExtractAllScores(v.Feedback)
		for _, s := range scores {
			result.TotalWeight += s
		}
		count += len(scores)

		result.Breakdown = append(result.Breakdown, QuestionScore{
			QuestionNumber: v.QuestionNumber,
			Band:           v.Band,
			Scores:         scores,
			Feedback:       v.Feedback,
		})
	}

	result.MaxPossible = count * scoring.MaxWeight
	if count > 0 {
		result.OverallPercent = int(math.Round(100 * float64(result.TotalWeight) / float64(result.MaxPossible)))
	}

	return result
}
