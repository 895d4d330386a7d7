package review

import (
	"errors"
	"fmt"
)

// ErrUnreadableDocument means no text could be recovered from an uploaded
// document. Nothing is sent to the LLM and nothing is persisted.
var ErrUnreadableDocument = errors.New("no readable text could be extracted from the document")

// ErrIdentityRequired means the subject has no registered company name yet
// and the submitted question is not the onboarding one, so the identity
// gate cannot run.
var ErrIdentityRequired = errors.New("no company identity registered for subject")

// ErrUnknownBand means a caller supplied a score band outside the fixed set.
var ErrUnknownBand = errors.New("unknown score band")

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ExternalServiceError wraps a failure from a dependency outside this
// process (LLM, OCR, extraction). Op names the dependency.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
