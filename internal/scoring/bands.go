// Package scoring defines the fixed compliance band vocabulary and the
// parsers that recover bands from free-text LLM replies.
package scoring

import (
	"fmt"
	"strings"
)

// Band is one of the five ordered compliance grades.
type Band string

// The five canonical bands, ordered by weight.
const (
	BandOfftrack   Band = "Offtrack"
	BandWarning    Band = "Warning"
	BandRobust     Band = "Robust"
	BandCommitment Band = "Commitment"
	BandStretch    Band = "Stretch"
)

// MaxWeight is the weight of the highest band, used as the per-question
// denominator when aggregating.
const MaxWeight = 5

// bandWeights maps each canonical band to its fixed integer weight.
var bandWeights = map[Band]int{
	BandOfftrack:   1,
	BandWarning:    2,
	BandRobust:     3,
	BandCommitment: 4,
	BandStretch:    5,
}

// Bands returns the five bands in ascending weight order.
func Bands() []Band {
	return []Band{BandOfftrack, BandWarning, BandRobust, BandCommitment, BandStretch}
}

// Weight returns the fixed weight (1-5) of a band. Unknown bands weigh 0.
func (b Band) Weight() int {
	return bandWeights[b]
}

// Valid reports whether b is one of the five canonical bands.
func (b Band) Valid() bool {
	_, ok := bandWeights[b]
	return ok
}

// Format renders a band in the canonical reply format, e.g. "Robust (3/5)".
func (b Band) Format() string {
	return fmt.Sprintf("%s (%d/5)", string(b), b.Weight())
}

// ParseBandName matches a token against the five canonical band names,
// case-insensitively. Only exact names match; any other label is unmatched.
func ParseBandName(token string) (Band, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "offtrack":
		return BandOfftrack, true
	case "warning":
		return BandWarning, true
	case "robust":
		return BandRobust, true
	case "commitment":
		return BandCommitment, true
	case "stretch":
		return BandStretch, true
	}
	return "", false
}

// BandFromWeight returns the band with the given weight, if any.
func BandFromWeight(w int) (Band, bool) {
	for _, b := range Bands() {
		if bandWeights[b] == w {
			return b, true
		}
	}
	return "", false
}
