package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractScore_CanonicalFormat(t *testing.T) {
	reply := "The policy covers all sites and is reviewed annually.\n\nScore: Commitment (4/5)"
	band, ok := ExtractScore(reply)
	assert.True(t, ok)
	assert.Equal(t, BandCommitment, band)
}

func TestExtractScore_BandNameWithoutDigit(t *testing.T) {
	band, ok := ExtractScore("Score: robust")
	assert.True(t, ok)
	assert.Equal(t, BandRobust, band)
}

func TestExtractScore_BandNameAuthoritativeOverDigit(t *testing.T) {
	// The digit disagrees with the band name; the name wins.
	band, ok := ExtractScore("Score: Warning (4/5)")
	assert.True(t, ok)
	assert.Equal(t, BandWarning, band)
}

func TestExtractScore_BandNameAfterDigit(t *testing.T) {
	// The name outranks the digit even when written after it.
	band, ok := ExtractScore("Score: 2/5 (Commitment)")
	assert.True(t, ok)
	assert.Equal(t, BandCommitment, band)

	// A band word on the next line is unrelated prose, not the score.
	band, ok = ExtractScore("Score: 2/5\nStretch goals were not assessed.")
	assert.True(t, ok)
	assert.Equal(t, BandWarning, band)
}

func TestExtractScore_DigitOnlyFallback(t *testing.T) {
	band, ok := ExtractScore("Overall assessment.\nScore: 2/5")
	assert.True(t, ok)
	assert.Equal(t, BandWarning, band)
}

func TestExtractScore_DigitOutOfRange(t *testing.T) {
	_, ok := ExtractScore("Score: 80")
	assert.False(t, ok)
}

func TestExtractScore_MarkdownNoise(t *testing.T) {
	band, ok := ExtractScore("**Score:** Stretch (5/5)")
	assert.True(t, ok)
	assert.Equal(t, BandStretch, band)
}

func TestExtractScore_NoMatch(t *testing.T) {
	for _, text := range []string{
		"",
		"The document does not address this requirement.",
		"Scoreboard results were excellent.",
	} {
		_, ok := ExtractScore(text)
		assert.False(t, ok, "expected no score in %q", text)
	}
}

func TestExtractAllScores_InDocumentOrder(t *testing.T) {
	text := "Requirement A is well covered.\nScore: Robust (3/5)\n\nRequirement B lacks evidence.\nScore: 2/5"
	assert.Equal(t, []int{3, 2}, ExtractAllScores(text))
}

func TestExtractAllScores_BareNumbers(t *testing.T) {
	text := "Score: 4\nsome prose\nScore: Stretch (5/5)\nScore: 1/5"
	assert.Equal(t, []int{4, 5, 1}, ExtractAllScores(text))
}

func TestExtractAllScores_Empty(t *testing.T) {
	assert.Empty(t, ExtractAllScores("no scores mentioned anywhere"))
}
