// Package identity decides whether a document plausibly belongs to the
// company a supplier claims to be, and extracts candidate company names
// from first-time uploads.
package identity

import (
	"regexp"
	"strings"
)

var nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9]`)

// legalSuffixes are legal-entity tokens that vary across how a company name
// is written in different documents and are dropped before comparing.
var legalSuffixes = map[string]bool{
	"limited": true,
	"ltd":     true,
	"inc":     true,
	"corp":    true,
	"company": true,
	"co":      true,
	"plc":     true,
	"pvt":     true,
	"pte":     true,
	"private": true,
}

// Normalize lowercases a string and strips everything except letters and
// digits, so that spacing and punctuation differences cannot break a match.
func Normalize(s string) string {
	return nonAlphanumericRe.ReplaceAllString(strings.ToLower(s), "")
}

// NormalizeCompanyName normalizes a company name for comparison, dropping
// legal-entity suffixes first. "Metro Telworks Pte Ltd" and "METRO TELWORKS"
// normalize to the same value.
func NormalizeCompanyName(name string) string {
	var kept []string
	for _, word := range strings.Fields(strings.ToLower(name)) {
		word = nonAlphanumericRe.ReplaceAllString(word, "")
		if word == "" || legalSuffixes[word] {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, "")
}

// significantWords returns the words of a company name longer than two
// characters, lowercased and stripped of punctuation.
func significantWords(name string) []string {
	var words []string
	for _, word := range strings.Fields(strings.ToLower(name)) {
		word = nonAlphanumericRe.ReplaceAllString(word, "")
		if len(word) > 2 {
			words = append(words, word)
		}
	}
	return words
}
