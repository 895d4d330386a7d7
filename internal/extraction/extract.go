// Package extraction turns uploaded files into plain text. Plain text and
// HTML are handled locally; PDFs and images go to an external OCR service.
// Producing no text is a normal outcome, not an error.
package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Extractor produces plain text from an uploaded file.
type Extractor interface {
	// Extract returns the text content of the file at path. declaredName
	// is the filename the uploader claimed, used for type detection.
	// languageHint is passed through to OCR. An empty result means the
	// file had no extractable text; that is not an error.
	Extract(ctx context.Context, path, declaredName, languageHint string) (string, error)
}

// FileExtractor extracts text from local files, delegating scanned formats
// to an OCR client.
type FileExtractor struct {
	ocr *OCRClient
	log *logrus.Logger
}

// NewFileExtractor creates an extractor. ocr may be nil, in which case
// scanned formats return an error.
func NewFileExtractor(ocr *OCRClient, log *logrus.Logger) *FileExtractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FileExtractor{ocr: ocr, log: log}
}

// Extract dispatches on the declared filename's extension.
func (e *FileExtractor) Extract(ctx context.Context, path, declaredName, languageHint string) (string, error) {
	ext := strings.ToLower(filepath.Ext(declaredName))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(path))
	}

	switch ext {
	case ".txt", ".md", ".csv", ".log":
		return readPlainText(path)
	case ".html", ".htm":
		return extractHTML(path)
	case ".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".webp":
		// The OCR service also handles PDFs with a native text layer.
		if e.ocr == nil {
			return "", fmt.Errorf("no OCR client configured for %s files", ext)
		}
		return e.ocr.Recognize(ctx, path, declaredName, languageHint)
	default:
		e.log.WithField("extension", ext).Debug("unknown extension, trying plain-text passthrough")
		return readPlainText(path)
	}
}

// readPlainText reads a file and returns its content when it looks like
// text. Binary content yields an empty string rather than garbage.
func readPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if !utf8.Valid(data) || strings.ContainsRune(string(data), '\x00') {
		return "", nil
	}
	return string(data), nil
}
