package extraction

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractHTML parses an HTML file and returns its visible text, one line
// per block element, with script and style content removed.
func extractHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	var lines []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, div").Each(func(_ int, s *goquery.Selection) {
		// Skip containers whose text is already covered by child blocks.
		if s.Children().Filter("h1, h2, h3, h4, h5, h6, p, li, td, th, div").Length() > 0 {
			return
		}
		text := strings.TrimSpace(collapseSpaces(s.Text()))
		if text != "" {
			lines = append(lines, text)
		}
	})

	if len(lines) == 0 {
		// Fall back to the whole body for documents without block markup.
		text := strings.TrimSpace(collapseSpaces(doc.Find("body").Text()))
		if text == "" {
			return "", nil
		}
		return text, nil
	}

	return strings.Join(lines, "\n"), nil
}

// collapseSpaces folds runs of whitespace into single spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
