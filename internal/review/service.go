// Package review orchestrates the compliance check of one supplier document
// against one checklist question: identity gating, prompt composition, LLM
// invocation, score extraction, and persistence.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/daniela/compliance-reviewer/internal/extraction"
	"github.com/daniela/compliance-reviewer/internal/identity"
	"github.com/daniela/compliance-reviewer/internal/llm"
	"github.com/daniela/compliance-reviewer/internal/prompts"
	"github.com/daniela/compliance-reviewer/internal/rubric"
	"github.com/daniela/compliance-reviewer/internal/scoring"
	"github.com/daniela/compliance-reviewer/internal/session"
	"github.com/daniela/compliance-reviewer/internal/store"
)

// DefaultOnboardingQuestion is the checklist question whose document doubles
// as the identity source when no company name is registered yet.
const DefaultOnboardingQuestion = 1

// Service wires the stores, the LLM client, the rubric, and the identity
// matcher into the document review flow.
type Service struct {
	store              store.Store
	llm                llm.Client
	registry           *rubric.Registry
	matcher            *identity.Matcher
	extractor          extraction.Extractor
	onboardingQuestion int
	log                *logrus.Logger
}

// NewService builds a review service. onboardingQuestion values below 1
// fall back to DefaultOnboardingQuestion.
func NewService(st store.Store, client llm.Client, registry *rubric.Registry, matcher *identity.Matcher, extractor extraction.Extractor, onboardingQuestion int, log *logrus.Logger) *Service {
	if onboardingQuestion < 1 {
		onboardingQuestion = DefaultOnboardingQuestion
	}
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		store:              st,
		llm:                client,
		registry:           registry,
		matcher:            matcher,
		extractor:          extractor,
		onboardingQuestion: onboardingQuestion,
		log:                log,
	}
}

// CheckRequest carries one document's text for review against one
// checklist question.
type CheckRequest struct {
	SubjectID      string `json:"subject_id" validate:"required"`
	QuestionNumber int    `json:"question_number" validate:"required,min=1"`
	DocumentText   string `json:"document_text"`
	Explanation    string `json:"explanation,omitempty"`
}

// Validate validates the CheckRequest using the validator.
func (r *CheckRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// FileCheckRequest is CheckRequest with the document still on disk.
type FileCheckRequest struct {
	SubjectID      string `validate:"required"`
	QuestionNumber int    `validate:"required,min=1"`
	Path           string `validate:"required"`
	DeclaredName   string
	LanguageHint   string
	Explanation    string
}

// Validate validates the FileCheckRequest using the validator.
func (r *FileCheckRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// CheckResult is the outcome of a document check. Accepted is false when the
// identity gate stopped the review; in that case no LLM call was made and
// nothing was persisted.
type CheckResult struct {
	Accepted                  bool           `json:"accepted"`
	Verdict                   *store.Verdict `json:"verdict,omitempty"`
	NeedsIdentityConfirmation bool           `json:"needs_identity_confirmation,omitempty"`
	IdentityMismatch          bool           `json:"identity_mismatch,omitempty"`
	DetectedName              string         `json:"detected_name,omitempty"`
	RegisteredName            string         `json:"registered_name,omitempty"`
}

// CheckDocument runs the full review flow on already-extracted text:
// identity gate, rubric lookup, LLM scoring, score extraction, verdict
// upsert. A reply with no recognizable score still persists the feedback,
// with a nil band.
func (s *Service) CheckDocument(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Field: "request", Message: err.Error()}
	}
	if strings.TrimSpace(req.DocumentText) == "" {
		return nil, ErrUnreadableDocument
	}

	gate, err := s.identityGate(ctx, req.SubjectID, req.QuestionNumber, req.DocumentText)
	if err != nil {
		return nil, err
	}
	if gate != nil {
		return gate, nil
	}

	questionText, guidance := s.questionPrompt(req.QuestionNumber)
	prompt := prompts.Format(prompts.MustGet("score_document"), map[string]string{
		"Question":     questionText,
		"BandGuidance": guidance,
		"Explanation":  req.Explanation,
		"Document":     req.DocumentText,
	})

	reply, err := s.llm.Complete(ctx, prompt, prompts.MustGet("system_review"), llm.TierStandard)
	if err != nil {
		return nil, &ExternalServiceError{Op: "llm", Err: err}
	}

	verdict := store.Verdict{
		SubjectID:      req.SubjectID,
		QuestionNumber: req.QuestionNumber,
		Feedback:       reply,
		UpdatedAt:      time.Now().UTC(),
	}
	if band, ok := scoring.ExtractScore(reply); ok {
		verdict.Band = &band
	} else {
		s.log.WithFields(logrus.Fields{
			"subject_id": req.SubjectID,
			"question":   req.QuestionNumber,
		}).Warn("LLM reply held no recognizable score; persisting feedback with nil band")
	}

	if err := s.store.UpsertVerdict(ctx, verdict); err != nil {
		return nil, fmt.Errorf("failed to persist verdict: %w", err)
	}

	return &CheckResult{Accepted: true, Verdict: &verdict}, nil
}

// CheckDocumentFile extracts text from a file on disk and delegates to
// CheckDocument. The caller owns the file; this never deletes it.
func (s *Service) CheckDocumentFile(ctx context.Context, req FileCheckRequest) (*CheckResult, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Field: "request", Message: err.Error()}
	}
	if s.extractor == nil {
		return nil, &ExternalServiceError{Op: "extraction", Err: fmt.Errorf("no extractor configured")}
	}

	text, err := s.extractor.Extract(ctx, req.Path, req.DeclaredName, req.LanguageHint)
	if err != nil {
		return nil, &ExternalServiceError{Op: "extraction", Err: err}
	}

	return s.CheckDocument(ctx, CheckRequest{
		SubjectID:      req.SubjectID,
		QuestionNumber: req.QuestionNumber,
		DocumentText:   text,
		Explanation:    req.Explanation,
	})
}

// identityGate enforces that the document belongs to the registered company.
// It returns a non-nil CheckResult when the review must stop here, nil when
// the caller may proceed. On the onboarding question with no registered
// identity, the gate detects a company name in the document and asks the
// caller to confirm it via SetIdentity before any scoring happens.
func (s *Service) identityGate(ctx context.Context, subjectID string, questionNumber int, docText string) (*CheckResult, error) {
	registered, err := s.store.GetIdentity(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	if registered == nil {
		if questionNumber != s.onboardingQuestion {
			return nil, ErrIdentityRequired
		}
		detected := identity.DetectCompanyName(docText)
		s.log.WithFields(logrus.Fields{
			"subject_id":    subjectID,
			"detected_name": detected,
		}).Info("onboarding document needs identity confirmation")
		return &CheckResult{
			NeedsIdentityConfirmation: true,
			DetectedName:              detected,
		}, nil
	}

	match := s.matcher.Match(docText, registered.CompanyName)
	if !match.Matched {
		return &CheckResult{
			IdentityMismatch: true,
			DetectedName:     identity.DetectCompanyName(docText),
			RegisteredName:   registered.CompanyName,
		}, nil
	}
	return nil, nil
}

// questionPrompt resolves the checklist text and band guidance for a
// question. Numbers outside the checklist still get reviewed, against
// generic band guidance.
func (s *Service) questionPrompt(number int) (string, string) {
	if q, ok := s.registry.Get(number); ok {
		return q.Text, q.BandGuidance()
	}
	var b strings.Builder
	for _, band := range scoring.Bands() {
		fmt.Fprintf(&b, "- %s\n", band.Format())
	}
	return fmt.Sprintf("Checklist question %d (text not on file)", number), b.String()
}

// SetIdentity registers or replaces the company name for a subject.
func (s *Service) SetIdentity(ctx context.Context, subjectID, companyName string) error {
	if strings.TrimSpace(subjectID) == "" {
		return &ValidationError{Field: "subject_id", Message: "must not be empty"}
	}
	if strings.TrimSpace(companyName) == "" {
		return &ValidationError{Field: "company_name", Message: "must not be empty"}
	}
	id := store.Identity{
		SubjectID:   subjectID,
		CompanyName: strings.TrimSpace(companyName),
		SetAt:       time.Now().UTC(),
	}
	if err := s.store.UpsertIdentity(ctx, id); err != nil {
		return fmt.Errorf("failed to persist identity: %w", err)
	}
	return nil
}

// Identity returns the registered company name, nil when none is set.
func (s *Service) Identity(ctx context.Context, subjectID string) (*store.Identity, error) {
	return s.store.GetIdentity(ctx, subjectID)
}

// Verdicts returns all of a subject's verdicts in ascending question order.
func (s *Service) Verdicts(ctx context.Context, subjectID string) ([]store.Verdict, error) {
	return s.store.ListVerdicts(ctx, subjectID)
}

// OverrideRequest is a manual verdict change by an auditor.
type OverrideRequest struct {
	SubjectID      string `json:"subject_id" validate:"required"`
	QuestionNumber int    `json:"question_number" validate:"required,min=1"`
	Band           string `json:"band" validate:"required"`
	Comment        string `json:"comment" validate:"required"`
	AuditorID      string `json:"-"`
}

// Validate validates the OverrideRequest using the validator.
func (r *OverrideRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// RecordManualOverride replaces the live verdict for (subject, question)
// with an auditor-chosen band and appends the change to the override log.
// The replacement feedback carries exactly one score line so the session
// roll-up counts the new band.
func (s *Service) RecordManualOverride(ctx context.Context, req OverrideRequest) (*store.OverrideEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Field: "request", Message: err.Error()}
	}
	band, ok := scoring.ParseBandName(req.Band)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBand, req.Band)
	}

	old, err := s.store.GetVerdict(ctx, req.SubjectID, req.QuestionNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load verdict: %w", err)
	}

	entry := store.OverrideEntry{
		ID:             uuid.New(),
		SubjectID:      req.SubjectID,
		QuestionNumber: req.QuestionNumber,
		NewBand:        band,
		Comment:        req.Comment,
		AuditorID:      req.AuditorID,
		CreatedAt:      time.Now().UTC(),
	}
	if old != nil {
		entry.OldBand = old.Band
	}
	if err := s.store.AppendOverride(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append override: %w", err)
	}

	verdict := store.Verdict{
		SubjectID:      req.SubjectID,
		QuestionNumber: req.QuestionNumber,
		Band:           &band,
		Feedback:       fmt.Sprintf("Manual override by auditor: %s\n\nScore: %s", req.Comment, band.Format()),
		UpdatedAt:      entry.CreatedAt,
	}
	if err := s.store.UpsertVerdict(ctx, verdict); err != nil {
		return nil, fmt.Errorf("failed to persist overriding verdict: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"subject_id": req.SubjectID,
		"question":   req.QuestionNumber,
		"new_band":   string(band),
		"auditor_id": req.AuditorID,
	}).Info("verdict manually overridden")

	return &entry, nil
}

// Overrides returns the audit trail for one (subject, question).
func (s *Service) Overrides(ctx context.Context, subjectID string, questionNumber int) ([]store.OverrideEntry, error) {
	return s.store.ListOverrides(ctx, subjectID, questionNumber)
}

// DisagreementRequest is a supplier's dispute of a verdict, or (when
// Evidence is empty and kind is missing-justification) an explanation for a
// document the supplier cannot provide.
type DisagreementRequest struct {
	SubjectID      string `json:"subject_id" validate:"required"`
	QuestionNumber int    `json:"question_number" validate:"required,min=1"`
	Requirement    string `json:"requirement" validate:"required"`
	Reason         string `json:"reason" validate:"required"`
	Evidence       string `json:"evidence,omitempty"`
}

// Validate validates the DisagreementRequest using the validator.
func (r *DisagreementRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// RecordDisagreement re-assesses a disputed requirement and appends the
// outcome to the disagreement log. The primary verdict is never changed by
// a dispute.
func (s *Service) RecordDisagreement(ctx context.Context, req DisagreementRequest) (*store.DisagreementEntry, error) {
	prompt := prompts.Format(prompts.MustGet("disagreement"), map[string]string{
		"Requirement": req.Requirement,
		"Reason":      req.Reason,
		"Evidence":    req.Evidence,
	})
	return s.appendAssessment(ctx, req, store.KindDisagreement, prompt)
}

// RecordMissingJustification assesses a supplier's explanation for a
// document it cannot provide and appends the outcome to the disagreement
// log.
func (s *Service) RecordMissingJustification(ctx context.Context, req DisagreementRequest) (*store.DisagreementEntry, error) {
	prompt := prompts.Format(prompts.MustGet("missing_justification"), map[string]string{
		"Requirement": req.Requirement,
		"Reason":      req.Reason,
	})
	return s.appendAssessment(ctx, req, store.KindMissingJustification, prompt)
}

func (s *Service) appendAssessment(ctx context.Context, req DisagreementRequest, kind, prompt string) (*store.DisagreementEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Field: "request", Message: err.Error()}
	}

	reply, err := s.llm.Complete(ctx, prompt, prompts.MustGet("system_review"), llm.TierStandard)
	if err != nil {
		return nil, &ExternalServiceError{Op: "llm", Err: err}
	}

	entry := store.DisagreementEntry{
		ID:             uuid.New(),
		SubjectID:      req.SubjectID,
		QuestionNumber: req.QuestionNumber,
		Kind:           kind,
		Requirement:    req.Requirement,
		Reason:         req.Reason,
		Feedback:       reply,
		CreatedAt:      time.Now().UTC(),
	}
	if band, ok := scoring.ExtractScore(reply); ok {
		entry.Band = &band
	}
	if err := s.store.AppendDisagreement(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append %s record: %w", kind, err)
	}
	return &entry, nil
}

// Disagreements returns a subject's dispute and missing-document records
// in insertion order.
func (s *Service) Disagreements(ctx context.Context, subjectID string) ([]store.DisagreementEntry, error) {
	return s.store.ListDisagreements(ctx, subjectID)
}

// SummarizeSession recomputes a subject's overall score from stored
// verdicts. With withNarrative set, an LLM-authored prose summary is
// attached; a narrative failure is logged and the numeric result returned
// anyway.
func (s *Service) SummarizeSession(ctx context.Context, subjectID string, withNarrative bool) (*session.Score, error) {
	var (
		verdicts []store.Verdict
		ident    *store.Identity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		verdicts, err = s.store.ListVerdicts(gctx, subjectID)
		return err
	})
	g.Go(func() error {
		var err error
		ident, err = s.store.GetIdentity(gctx, subjectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	score := session.Aggregate(subjectID, verdicts)
	if ident != nil {
		score.CompanyName = ident.CompanyName
	}

	if withNarrative && len(score.Breakdown) > 0 {
		narrative, err := s.narrate(ctx, score)
		if err != nil {
			s.log.WithError(err).WithField("subject_id", subjectID).Warn("session narrative unavailable")
		} else {
			score.Narrative = narrative
		}
	}

	return &score, nil
}

func (s *Service) narrate(ctx context.Context, score session.Score) (string, error) {
	var b strings.Builder
	for _, q := range score.Breakdown {
		band := "no score parsed"
		if q.Band != nil {
			band = q.Band.Format()
		}
		text := fmt.Sprintf("Question %d", q.QuestionNumber)
		if rq, ok := s.registry.Get(q.QuestionNumber); ok {
			text = fmt.Sprintf("Question %d: %s", q.QuestionNumber, rq.Text)
		}
		fmt.Fprintf(&b, "%s [%s]\n", text, band)
	}

	prompt := prompts.Format(prompts.MustGet("session_summary"), map[string]string{
		"Breakdown": b.String(),
	})
	reply, err := s.llm.Complete(ctx, prompt, "", llm.TierLite)
	if err != nil {
		return "", &ExternalServiceError{Op: "llm", Err: err}
	}
	return strings.TrimSpace(reply), nil
}
