package review

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniela/compliance-reviewer/internal/identity"
	"github.com/daniela/compliance-reviewer/internal/llm"
	"github.com/daniela/compliance-reviewer/internal/rubric"
	"github.com/daniela/compliance-reviewer/internal/scoring"
	"github.com/daniela/compliance-reviewer/internal/store"
)

// fakeLLM returns canned replies in order and records the prompts it saw.
type fakeLLM struct {
	replies []string
	err     error
	prompts []string
	systems []string
}

func (f *fakeLLM) Complete(_ context.Context, prompt, systemPrompt string, _ llm.ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, systemPrompt)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.prompts) - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i], nil
}

func (f *fakeLLM) Close() error { return nil }

func newTestService(t *testing.T, fake *fakeLLM) (*Service, store.Store) {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "review.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	registry, err := rubric.Load()
	require.NoError(t, err)

	svc := NewService(st, fake, registry, identity.NewMatcher(identity.StrategyTokenOverlap), nil, DefaultOnboardingQuestion, nil)
	return svc, st
}

const onboardingDoc = `PT Sumber Makmur
Occupational Health and Safety Policy

Management commits to providing a safe workplace for all employees of
PT Sumber Makmur, reviewed annually and signed by the director.`

func TestCheckDocument_OnboardingAsksForIdentityConfirmation(t *testing.T) {
	fake := &fakeLLM{replies: []string{"The policy is signed and current.\nScore: Commitment (4/5)"}}
	svc, st := newTestService(t, fake)
	ctx := context.Background()

	result, err := svc.CheckDocument(ctx, CheckRequest{
		SubjectID:      "supplier@sumbermakmur.example",
		QuestionNumber: 1,
		DocumentText:   onboardingDoc,
	})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.True(t, result.NeedsIdentityConfirmation)
	assert.Equal(t, "PT Sumber Makmur", result.DetectedName)
	assert.Empty(t, fake.prompts, "no LLM call before the identity is confirmed")

	v, err := st.GetVerdict(ctx, "supplier@sumbermakmur.example", 1)
	require.NoError(t, err)
	assert.Nil(t, v)

	ident, err := svc.Identity(ctx, "supplier@sumbermakmur.example")
	require.NoError(t, err)
	assert.Nil(t, ident, "a detected name is advisory until the caller confirms it")
}

func TestCheckDocument_OnboardingResubmitAfterConfirmation(t *testing.T) {
	fake := &fakeLLM{replies: []string{"The policy is signed and current.\nScore: Commitment (4/5)"}}
	svc, _ := newTestService(t, fake)
	ctx := context.Background()

	require.NoError(t, svc.SetIdentity(ctx, "supplier@sumbermakmur.example", "PT Sumber Makmur"))

	result, err := svc.CheckDocument(ctx, CheckRequest{
		SubjectID:      "supplier@sumbermakmur.example",
		QuestionNumber: 1,
		DocumentText:   onboardingDoc,
	})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	require.NotNil(t, result.Verdict)
	require.NotNil(t, result.Verdict.Band)
	assert.Equal(t, scoring.BandCommitment, *result.Verdict.Band)
}

func TestCheckDocument_IdentityRequiredBeforeOnboarding(t *testing.T) {
	fake := &fakeLLM{replies: []string{"Score: Robust (3/5)"}}
	svc, _ := newTestService(t, fake)

	_, err := svc.CheckDocument(context.Background(), CheckRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 3,
		DocumentText:   "Training records for forklift operators.",
	})
	assert.ErrorIs(t, err, ErrIdentityRequired)
	assert.Empty(t, fake.prompts, "identity gate must stop the review before the LLM")
}

func TestCheckDocument_MismatchedDocumentIsRejectedWithoutPersisting(t *testing.T) {
	fake := &fakeLLM{replies: []string{"Score: Robust (3/5)"}}
	svc, st := newTestService(t, fake)
	ctx := context.Background()

	require.NoError(t, svc.SetIdentity(ctx, "s@x.example", "Acme Corp"))

	result, err := svc.CheckDocument(ctx, CheckRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 2,
		DocumentText:   "Risk assessment prepared for Beta Industries Ltd covering warehouse operations.",
	})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.True(t, result.IdentityMismatch)
	assert.Equal(t, "Acme Corp", result.RegisteredName)
	assert.Empty(t, fake.prompts)

	v, err := st.GetVerdict(ctx, "s@x.example", 2)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCheckDocument_MatchingDocumentScoresAndPersists(t *testing.T) {
	fake := &fakeLLM{replies: []string{"Assessments cover all sites.\nScore: Robust (3/5)"}}
	svc, st := newTestService(t, fake)
	ctx := context.Background()

	require.NoError(t, svc.SetIdentity(ctx, "s@x.example", "Metro Telworks Pte Ltd"))

	result, err := svc.CheckDocument(ctx, CheckRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 2,
		DocumentText:   "Risk register of METRO TELWORKS, updated quarterly, covering all warehouse sites.",
	})
	require.NoError(t, err)
	assert.True(t, result.Accepted)

	v, err := st.GetVerdict(ctx, "s@x.example", 2)
	require.NoError(t, err)
	require.NotNil(t, v)
	require.NotNil(t, v.Band)
	assert.Equal(t, scoring.BandRobust, *v.Band)

	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "risk assessment", "prompt should carry the checklist question text")
	assert.Contains(t, fake.prompts[0], "Offtrack (1/5)")
	assert.Contains(t, fake.systems[0], "compliance auditor")
}

func TestCheckDocument_UnparseableReplyPersistsNilBand(t *testing.T) {
	fake := &fakeLLM{replies: []string{"The document partially addresses the requirement but no grade today."}}
	svc, st := newTestService(t, fake)
	ctx := context.Background()

	require.NoError(t, svc.SetIdentity(ctx, "s@x.example", "Acme Corp"))

	result, err := svc.CheckDocument(ctx, CheckRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 4,
		DocumentText:   "Grievance mechanism of Acme Corp: workers may report anonymously.",
	})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Nil(t, result.Verdict.Band)

	v, err := st.GetVerdict(ctx, "s@x.example", 4)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Nil(t, v.Band)
	assert.Contains(t, v.Feedback, "partially addresses")
}

func TestCheckDocument_EmptyTextRejectedBeforeLLM(t *testing.T) {
	fake := &fakeLLM{replies: []string{"Score: Robust (3/5)"}}
	svc, _ := newTestService(t, fake)

	_, err := svc.CheckDocument(context.Background(), CheckRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 1,
		DocumentText:   "   \n\t ",
	})
	assert.ErrorIs(t, err, ErrUnreadableDocument)
	assert.Empty(t, fake.prompts)
}

func TestCheckDocument_OnboardingDetectionFallsBackToFirstLine(t *testing.T) {
	fake := &fakeLLM{replies: []string{"Score: Robust (3/5)"}}
	svc, _ := newTestService(t, fake)

	result, err := svc.CheckDocument(context.Background(), CheckRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 1,
		DocumentText:   "9921-X safety policy\n7-45\n2024-01-01",
	})
	require.NoError(t, err)
	assert.True(t, result.NeedsIdentityConfirmation)
	assert.Equal(t, "9921-X safety policy", result.DetectedName)
}

func TestCheckDocument_UnknownQuestionStillReviewed(t *testing.T) {
	fake := &fakeLLM{replies: []string{"Score: Warning (2/5)"}}
	svc, st := newTestService(t, fake)
	ctx := context.Background()

	require.NoError(t, svc.SetIdentity(ctx, "s@x.example", "Acme Corp"))

	result, err := svc.CheckDocument(ctx, CheckRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 99,
		DocumentText:   "Supplementary evidence from Acme Corp.",
	})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "Checklist question 99")

	v, err := st.GetVerdict(ctx, "s@x.example", 99)
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestCheckDocument_LLMErrorIsExternal(t *testing.T) {
	sentinel := errors.New("deadline exceeded")
	fake := &fakeLLM{err: sentinel}
	svc, _ := newTestService(t, fake)
	ctx := context.Background()

	require.NoError(t, svc.SetIdentity(ctx, "s@x.example", "Acme Corp"))

	_, err := svc.CheckDocument(ctx, CheckRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 2,
		DocumentText:   "Risk assessment of Acme Corp.",
	})
	var external *ExternalServiceError
	require.ErrorAs(t, err, &external)
	assert.Equal(t, "llm", external.Op)
	assert.ErrorIs(t, err, sentinel)
}

func TestRecordManualOverride_ReplacesVerdictAndLogs(t *testing.T) {
	fake := &fakeLLM{replies: []string{"Score: Warning (2/5)"}}
	svc, st := newTestService(t, fake)
	ctx := context.Background()

	require.NoError(t, svc.SetIdentity(ctx, "s@x.example", "Acme Corp"))
	_, err := svc.CheckDocument(ctx, CheckRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 2,
		DocumentText:   "Risk assessment of Acme Corp.",
	})
	require.NoError(t, err)

	entry, err := svc.RecordManualOverride(ctx, OverrideRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 2,
		Band:           "Commitment",
		Comment:        "Site visit confirmed annual review cadence.",
		AuditorID:      "auditor-1",
	})
	require.NoError(t, err)
	require.NotNil(t, entry.OldBand)
	assert.Equal(t, scoring.BandWarning, *entry.OldBand)
	assert.Equal(t, scoring.BandCommitment, entry.NewBand)

	v, err := st.GetVerdict(ctx, "s@x.example", 2)
	require.NoError(t, err)
	require.NotNil(t, v.Band)
	assert.Equal(t, scoring.BandCommitment, *v.Band)
	assert.Equal(t, []int{4}, scoring.ExtractAllScores(v.Feedback), "roll-up must see the overridden score")

	log, err := svc.Overrides(ctx, "s@x.example", 2)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "auditor-1", log[0].AuditorID)
}

func TestRecordManualOverride_UnknownBand(t *testing.T) {
	fake := &fakeLLM{}
	svc, _ := newTestService(t, fake)

	_, err := svc.RecordManualOverride(context.Background(), OverrideRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 2,
		Band:           "Excellent",
		Comment:        "n/a",
	})
	assert.ErrorIs(t, err, ErrUnknownBand)
}

func TestRecordDisagreement_AppendsWithoutTouchingVerdict(t *testing.T) {
	fake := &fakeLLM{replies: []string{
		"Score: Warning (2/5)",
		"The dispute cites no new evidence.\nScore: Offtrack (1/5)",
	}}
	svc, st := newTestService(t, fake)
	ctx := context.Background()

	require.NoError(t, svc.SetIdentity(ctx, "s@x.example", "Acme Corp"))
	_, err := svc.CheckDocument(ctx, CheckRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 2,
		DocumentText:   "Risk assessment of Acme Corp.",
	})
	require.NoError(t, err)

	entry, err := svc.RecordDisagreement(ctx, DisagreementRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 2,
		Requirement:    "Documented risk assessments for all sites",
		Reason:         "We believe the score is unfair.",
	})
	require.NoError(t, err)
	assert.Equal(t, store.KindDisagreement, entry.Kind)
	require.NotNil(t, entry.Band)
	assert.Equal(t, scoring.BandOfftrack, *entry.Band)

	v, err := st.GetVerdict(ctx, "s@x.example", 2)
	require.NoError(t, err)
	require.NotNil(t, v.Band)
	assert.Equal(t, scoring.BandWarning, *v.Band, "dispute must not change the primary verdict")

	records, err := svc.Disagreements(ctx, "s@x.example")
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestRecordMissingJustification_Kind(t *testing.T) {
	fake := &fakeLLM{replies: []string{"Plausible but unverifiable.\nScore: Offtrack (1/5)"}}
	svc, _ := newTestService(t, fake)

	entry, err := svc.RecordMissingJustification(context.Background(), DisagreementRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 5,
		Requirement:    "Working-hours records for the past 12 months",
		Reason:         "Records were destroyed in a flood.",
	})
	require.NoError(t, err)
	assert.Equal(t, store.KindMissingJustification, entry.Kind)
	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "destroyed in a flood")
}

func TestSummarizeSession_DeterministicAggregate(t *testing.T) {
	fake := &fakeLLM{replies: []string{
		"Score: Commitment (4/5)",
		"Score: Warning (2/5)",
	}}
	svc, _ := newTestService(t, fake)
	ctx := context.Background()

	require.NoError(t, svc.SetIdentity(ctx, "s@x.example", "Acme Corp"))
	for _, q := range []int{1, 2} {
		_, err := svc.CheckDocument(ctx, CheckRequest{
			SubjectID:      "s@x.example",
			QuestionNumber: q,
			DocumentText:   fmt.Sprintf("Evidence for item %d from Acme Corp.", q),
		})
		require.NoError(t, err)
	}

	score, err := svc.SummarizeSession(ctx, "s@x.example", false)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", score.CompanyName)
	assert.Equal(t, 6, score.TotalWeight)
	assert.Equal(t, 10, score.MaxPossible)
	assert.Equal(t, 60, score.OverallPercent)
	require.Len(t, score.Breakdown, 2)
	assert.Empty(t, score.Narrative)
}

func TestSummarizeSession_NarrativeDoesNotAffectNumbers(t *testing.T) {
	fake := &fakeLLM{replies: []string{
		"Score: Stretch (5/5)",
		"Overall the supplier performed admirably, roughly 97 percent in my estimation.",
	}}
	svc, _ := newTestService(t, fake)
	ctx := context.Background()

	require.NoError(t, svc.SetIdentity(ctx, "s@x.example", "Acme Corp"))
	_, err := svc.CheckDocument(ctx, CheckRequest{
		SubjectID:      "s@x.example",
		QuestionNumber: 1,
		DocumentText:   "OHS policy of Acme Corp, signed by the managing director.",
	})
	require.NoError(t, err)

	score, err := svc.SummarizeSession(ctx, "s@x.example", true)
	require.NoError(t, err)
	assert.Equal(t, 100, score.OverallPercent, "prose estimates never feed the computed score")
	assert.Contains(t, score.Narrative, "admirably")
}

func TestSummarizeSession_EmptySession(t *testing.T) {
	fake := &fakeLLM{}
	svc, _ := newTestService(t, fake)

	score, err := svc.SummarizeSession(context.Background(), "nobody@x.example", true)
	require.NoError(t, err)
	assert.Equal(t, 0, score.OverallPercent)
	assert.Empty(t, score.Breakdown)
	assert.Empty(t, fake.prompts, "no narrative call for an empty session")
}

func TestCheckDocument_ValidationErrors(t *testing.T) {
	fake := &fakeLLM{}
	svc, _ := newTestService(t, fake)

	_, err := svc.CheckDocument(context.Background(), CheckRequest{
		QuestionNumber: 1,
		DocumentText:   "text",
	})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.CheckDocument(context.Background(), CheckRequest{
		SubjectID:    "s@x.example",
		DocumentText: "text",
	})
	assert.ErrorAs(t, err, &verr)
}

func TestSetIdentity_TrimsAndRejectsEmpty(t *testing.T) {
	fake := &fakeLLM{}
	svc, _ := newTestService(t, fake)
	ctx := context.Background()

	assert.Error(t, svc.SetIdentity(ctx, "s@x.example", "   "))

	require.NoError(t, svc.SetIdentity(ctx, "s@x.example", "  Acme Corp  "))
	ident, err := svc.Identity(ctx, "s@x.example")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", ident.CompanyName)
	assert.False(t, strings.HasPrefix(ident.CompanyName, " "))
}
