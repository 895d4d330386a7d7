package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// OCRClient calls an external OCR HTTP service that accepts a multipart
// file upload and returns recognized text as JSON. The service is expected
// to fall back to OCR for PDFs without an extractable text layer.
type OCRClient struct {
	endpoint string
	apiKey   string
	client   *retryablehttp.Client
}

// NewOCRClient creates a client for the OCR service at endpoint. apiKey may
// be empty for unauthenticated deployments.
func NewOCRClient(endpoint, apiKey string, log *logrus.Logger) *OCRClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 10 * time.Second
	client.HTTPClient.Timeout = 120 * time.Second
	if log != nil {
		client.Logger = log
	} else {
		client.Logger = nil
	}

	return &OCRClient{endpoint: endpoint, apiKey: apiKey, client: client}
}

// Recognize uploads the file and returns the recognized text. A reply that
// contains no text yields an empty string, not an error.
func (c *OCRClient) Recognize(ctx context.Context, path, declaredName, languageHint string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", declaredName)
	if err != nil {
		return "", fmt.Errorf("failed to build OCR request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to read file for OCR: %w", err)
	}
	if languageHint != "" {
		_ = writer.WriteField("language", languageHint)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize OCR request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body.Bytes())
	if err != nil {
		return "", fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read OCR response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR service returned status %d", resp.StatusCode)
	}

	return parseOCRResponse(respBody), nil
}

// parseOCRResponse pulls recognized text out of the service's JSON reply.
// Both a flat {"text": ...} shape and the OCR.space-style ParsedResults
// array are supported.
func parseOCRResponse(body []byte) string {
	if text := gjson.GetBytes(body, "text"); text.Exists() {
		return strings.TrimSpace(text.String())
	}

	results := gjson.GetBytes(body, "ParsedResults")
	if !results.Exists() {
		return ""
	}
	var pages []string
	results.ForEach(func(_, page gjson.Result) bool {
		if t := strings.TrimSpace(page.Get("ParsedText").String()); t != "" {
			pages = append(pages, t)
		}
		return true
	})
	return strings.Join(pages, "\n")
}
