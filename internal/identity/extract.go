package identity

import (
	"regexp"
	"strings"
)

// Labels and lead tokens that mark a line as carrying a company name.
var (
	labeledNameRe    = regexp.MustCompile(`(?i)^.{0,40}?(?:company\s*name|supplier(?:\s*name)?)\s*[:\-]\s*(.+)$`)
	leadEntityRe     = regexp.MustCompile(`(?i)^((?:PT|CV|PD|UD|LTD|INC|CORP|PTE)\.?\s+[A-Za-z0-9][A-Za-z0-9 .,&'\-]*)$`)
	alphabeticLineRe = regexp.MustCompile(`^[A-Za-z ]+$`)
)

// candidateName extracts a company-name candidate from a single document
// line. A line qualifies when it carries an explicit label, starts with a
// legal-entity token, or is a bare header: purely alphabetic with at least
// two words, the way a company name is printed atop a letterhead without
// its legal suffix.
func candidateName(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if m := labeledNameRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := leadEntityRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if alphabeticLineRe.MatchString(line) && len(strings.Fields(line)) >= 2 {
		return line, true
	}
	return "", false
}

// DetectCompanyName scans document text line by line and returns a
// best-effort company name for onboarding. Strategies are tried in order:
// an explicitly labeled line, a line led by a legal-entity token, the first
// purely alphabetic line with at least two words, and finally the first
// non-empty line. The result is advisory: it is handed back to the caller
// for confirmation and never becomes the registered identity on its own.
func DetectCompanyName(text string) string {
	lines := strings.Split(text, "\n")

	for _, line := range lines {
		if m := labeledNameRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				return name
			}
		}
	}

	for _, line := range lines {
		if m := leadEntityRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return strings.TrimSpace(m[1])
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !alphabeticLineRe.MatchString(trimmed) {
			continue
		}
		if len(strings.Fields(trimmed)) >= 2 {
			return trimmed
		}
	}

	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}

	return ""
}
