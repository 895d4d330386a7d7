package scoring

import (
	"regexp"
	"strconv"
)

// The reply format requested from the LLM is "Score: <Band> (<digit>/5)".
// Replies only approximately follow it, so extraction runs two passes: a
// strict pass keyed on the band name, then a digit-only fallback.
var (
	// Band name, optionally followed by a parenthesised digit.
	strictScoreRe = regexp.MustCompile(`(?i)\bscore\s*[:\-]\s*\**\s*(offtrack|warning|robust|commitment|stretch)\b(?:\s*\(\s*(\d)\s*/\s*5\s*\))?`)

	// Bare number after "Score:", with or without "/5".
	numericScoreRe = regexp.MustCompile(`(?i)\bscore\s*[:\-]\s*\**\s*(\d{1,3})(?:\s*/\s*5)?`)

	// Band name trailing a bare number on the same line, as in
	// "Score: 2/5 (Warning)".
	trailingBandRe = regexp.MustCompile(`(?i)^[^A-Za-z0-9\n]{0,10}(offtrack|warning|robust|commitment|stretch)\b`)

	// Loose form used for aggregation: every "Score:" occurrence, with an
	// optional band word before the number.
	anyScoreRe = regexp.MustCompile(`(?i)\bscore\s*[:\-]\s*\**\s*(?:(?:offtrack|warning|robust|commitment|stretch)\s*)?\(?\s*(\d{1,3})(?:\s*/\s*5)?\s*\)?`)
)

// ExtractScore pulls a single band out of an LLM reply.
//
// The band name is authoritative: when both a name and a digit are present
// and they disagree, the name wins and the digit is treated as redundant.
// A bare digit is only used when no band name appears at all. Returns false
// when the reply contains no recognizable score; malformed input is never
// an error.
func ExtractScore(text string) (Band, bool) {
	if m := strictScoreRe.FindStringSubmatch(text); m != nil {
		if band, ok := ParseBandName(m[1]); ok {
			return band, true
		}
	}

	if loc := numericScoreRe.FindStringSubmatchIndex(text); loc != nil {
		// A band name written after the digit still outranks it.
		if m := trailingBandRe.FindStringSubmatch(text[loc[1]:]); m != nil {
			if band, ok := ParseBandName(m[1]); ok {
				return band, true
			}
		}
		n, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err == nil {
			if band, ok := BandFromWeight(n); ok {
				return band, true
			}
		}
	}

	return "", false
}

// ExtractAllScores scans the full text for every score occurrence and
// returns the numeric values in order of appearance. The pattern is
// deliberately permissive (bare numbers are accepted) because replies that
// enumerate several sub-requirements rarely follow the requested format
// exactly. Text with no scores yields an empty slice.
func ExtractAllScores(text string) []int {
	matches := anyScoreRe.FindAllStringSubmatch(text, -1)
	scores := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		scores = append(scores, n)
	}
	return scores
}
