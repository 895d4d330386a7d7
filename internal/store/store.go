// Package store persists verdicts, registered identities, audit entries,
// and disagreement records. Two backends exist: PostgreSQL for shared
// deployments and SQLite for single-node ones.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/daniela/compliance-reviewer/internal/scoring"
)

// Verdict is the stored outcome of evaluating one document against one
// checklist question for one subject. Band is nil when the LLM reply held
// no recognizable score; the raw feedback is kept for manual audit either
// way. At most one live verdict exists per (subject, question); later
// writes overwrite earlier ones.
type Verdict struct {
	SubjectID      string        `json:"subject_id"`
	QuestionNumber int           `json:"question_number"`
	Band           *scoring.Band `json:"band"`
	Feedback       string        `json:"feedback"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Identity is the registered company name for a subject. One per subject,
// last writer wins.
type Identity struct {
	SubjectID   string    `json:"subject_id"`
	CompanyName string    `json:"company_name"`
	SetAt       time.Time `json:"set_at"`
}

// OverrideEntry records a manual verdict change by an auditor. The log is
// append-only: the verdict row is replaced, the history is not.
type OverrideEntry struct {
	ID             uuid.UUID     `json:"id"`
	SubjectID      string        `json:"subject_id"`
	QuestionNumber int           `json:"question_number"`
	OldBand        *scoring.Band `json:"old_band"`
	NewBand        scoring.Band  `json:"new_band"`
	Comment        string        `json:"comment"`
	AuditorID      string        `json:"auditor_id"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Disagreement record kinds.
const (
	KindDisagreement         = "disagreement"
	KindMissingJustification = "missing_justification"
)

// DisagreementEntry records a supplier's dispute of a verdict or a
// justification for a missing document, with the re-assessment result.
// Entries append; they never replace the primary verdict.
type DisagreementEntry struct {
	ID             uuid.UUID     `json:"id"`
	SubjectID      string        `json:"subject_id"`
	QuestionNumber int           `json:"question_number"`
	Kind           string        `json:"kind"`
	Requirement    string        `json:"requirement"`
	Reason         string        `json:"reason"`
	Band           *scoring.Band `json:"band"`
	Feedback       string        `json:"feedback"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Auditor is a human reviewer account allowed to override verdicts.
type Auditor struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the persistence interface consumed by the review service.
// Upserts follow last-writer-wins semantics; concurrent writes to the same
// (subject, question) are not coordinated.
type Store interface {
	UpsertVerdict(ctx context.Context, v Verdict) error
	GetVerdict(ctx context.Context, subjectID string, questionNumber int) (*Verdict, error)
	// ListVerdicts returns all verdicts for a subject in ascending
	// question-number order.
	ListVerdicts(ctx context.Context, subjectID string) ([]Verdict, error)

	UpsertIdentity(ctx context.Context, id Identity) error
	// GetIdentity returns nil when no identity is registered.
	GetIdentity(ctx context.Context, subjectID string) (*Identity, error)

	AppendOverride(ctx context.Context, e OverrideEntry) error
	ListOverrides(ctx context.Context, subjectID string, questionNumber int) ([]OverrideEntry, error)

	AppendDisagreement(ctx context.Context, e DisagreementEntry) error
	ListDisagreements(ctx context.Context, subjectID string) ([]DisagreementEntry, error)

	CreateAuditor(ctx context.Context, a Auditor) error
	// GetAuditorByEmail returns nil when no auditor has that email.
	GetAuditorByEmail(ctx context.Context, email string) (*Auditor, error)

	Close() error
}

// bandPtr converts a nullable text column back into a Band pointer,
// dropping values that are not canonical band names.
func bandPtr(s *string) *scoring.Band {
	if s == nil {
		return nil
	}
	band, ok := scoring.ParseBandName(*s)
	if !ok {
		return nil
	}
	return &band
}

// bandText converts a Band pointer into a nullable text column value.
func bandText(b *scoring.Band) *string {
	if b == nil {
		return nil
	}
	s := string(*b)
	return &s
}
