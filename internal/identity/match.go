package identity

import "strings"

// Strategy selects how document text is matched against a registered
// company name.
type Strategy string

// Supported matching strategies.
const (
	// StrategyExact compares the normalized registered name against
	// normalized candidate lines extracted from the document.
	StrategyExact Strategy = "exact"
	// StrategyTokenOverlap requires enough significant words of the
	// registered name to appear in the normalized document text.
	StrategyTokenOverlap Strategy = "token-overlap"
)

// ParseStrategy parses a configured strategy name. Empty input selects the
// default token-overlap strategy.
func ParseStrategy(s string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(StrategyTokenOverlap):
		return StrategyTokenOverlap, true
	case string(StrategyExact):
		return StrategyExact, true
	}
	return "", false
}

// MatchResult is the outcome of an identity check. RegisteredName is always
// populated so a mismatch can be surfaced back to the caller for correction.
type MatchResult struct {
	Matched        bool
	RegisteredName string
}

// Matcher checks documents against registered company names using a fixed
// strategy.
type Matcher struct {
	strategy Strategy
}

// NewMatcher creates a matcher for the given strategy.
func NewMatcher(strategy Strategy) *Matcher {
	return &Matcher{strategy: strategy}
}

// Match reports whether the document text plausibly belongs to the company
// registered under registeredName.
func (m *Matcher) Match(docText, registeredName string) MatchResult {
	result := MatchResult{RegisteredName: registeredName}
	switch m.strategy {
	case StrategyExact:
		result.Matched = matchExact(docText, registeredName)
	default:
		result.Matched = matchTokenOverlap(docText, registeredName)
	}
	return result
}

// matchExact compares the normalized registered name against each candidate
// line of the document: lines with an explicit company label, lines led by
// a legal-entity token, and bare alphabetic header lines.
func matchExact(docText, registeredName string) bool {
	want := NormalizeCompanyName(registeredName)
	if want == "" {
		return false
	}
	for _, line := range strings.Split(docText, "\n") {
		candidate, ok := candidateName(line)
		if !ok {
			continue
		}
		if NormalizeCompanyName(candidate) == want {
			return true
		}
	}
	return false
}

// matchTokenOverlap requires min(2, wordCount) significant words of the
// registered name to appear as substrings of the normalized document text.
func matchTokenOverlap(docText, registeredName string) bool {
	words := significantWords(registeredName)
	if len(words) == 0 {
		return false
	}

	needed := 2
	if len(words) < needed {
		needed = len(words)
	}

	normalizedDoc := Normalize(docText)
	found := 0
	for _, word := range words {
		if strings.Contains(normalizedDoc, word) {
			found++
			if found >= needed {
				return true
			}
		}
	}
	return false
}
