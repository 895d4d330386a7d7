package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/daniela/compliance-reviewer/internal/scoring"
	"github.com/daniela/compliance-reviewer/internal/store"
)

func verdict(q int, feedback string) store.Verdict {
	return store.Verdict{
		SubjectID:      "a@x.com",
		QuestionNumber: q,
		Feedback:       feedback,
		UpdatedAt:      time.Unix(1700000000, 0),
	}
}

func TestAggregate_SumsAllScoresInQuestionOrder(t *testing.T) {
	verdicts := []store.Verdict{
		verdict(3, "Partially addressed.\nScore: Warning (2/5)"),
		verdict(1, "Strong evidence throughout.\nScore: Commitment (4/5)"),
	}

	got := Aggregate("a@x.com", verdicts)

	assert.Equal(t, 6, got.TotalWeight)
	assert.Equal(t, 10, got.MaxPossible)
	assert.Equal(t, 60, got.OverallPercent)
	assert.Equal(t, 1, got.Breakdown[0].QuestionNumber)
	assert.Equal(t, 3, got.Breakdown[1].QuestionNumber)
	assert.Equal(t, []int{4}, got.Breakdown[0].Scores)
}

func TestAggregate_MultipleScoresInOneVerdict(t *testing.T) {
	verdicts := []store.Verdict{
		verdict(2, "Sub-requirement A.\nScore: Robust (3/5)\nSub-requirement B.\nScore: 2/5"),
	}

	got := Aggregate("a@x.com", verdicts)

	assert.Equal(t, []int{3, 2}, got.Breakdown[0].Scores)
	assert.Equal(t, 5, got.TotalWeight)
	assert.Equal(t, 10, got.MaxPossible)
	assert.Equal(t, 50, got.OverallPercent)
}

func TestAggregate_NoScoresYieldsZeroNotError(t *testing.T) {
	got := Aggregate("a@x.com", []store.Verdict{
		verdict(1, "The reply contained no recognizable grading."),
	})

	assert.Equal(t, 0, got.TotalWeight)
	assert.Equal(t, 0, got.MaxPossible)
	assert.Equal(t, 0, got.OverallPercent)
}

func TestAggregate_EmptyVerdicts(t *testing.T) {
	got := Aggregate("a@x.com", nil)
	assert.Equal(t, 0, got.OverallPercent)
	assert.Empty(t, got.Breakdown)
}

func TestAggregate_Deterministic(t *testing.T) {
	verdicts := []store.Verdict{
		verdict(1, "Score: Stretch (5/5)"),
		verdict(2, "Score: 1/5"),
		verdict(4, "Score: Robust (3/5)"),
	}

	first := Aggregate("a@x.com", verdicts)
	second := Aggregate("a@x.com", verdicts)

	assert.Equal(t, first, second)
	assert.Equal(t, 60, first.OverallPercent) // 9 of 15
}

func TestAggregate_IgnoresBandField(t *testing.T) {
	// The roll-up reads scores out of the feedback text; a stale Band
	// value on the verdict row does not change the arithmetic.
	band := scoring.BandStretch
	v := verdict(1, "Score: Offtrack (1/5)")
	v.Band = &band

	got := Aggregate("a@x.com", []store.Verdict{v})
	assert.Equal(t, 1, got.TotalWeight)
	assert.Equal(t, 20, got.OverallPercent)
}

func TestAggregate_Rounding(t *testing.T) {
	// 2 of 15 rounds to 13, not 13.33 truncated oddly.
	verdicts := []store.Verdict{
		verdict(1, "Score: 1/5"),
		verdict(2, "Score: 1/5 and also Score: 0/5"),
	}
	got := Aggregate("a@x.com", verdicts)
	assert.Equal(t, 2, got.TotalWeight)
	assert.Equal(t, 15, got.MaxPossible)
	assert.Equal(t, 13, got.OverallPercent)
}
