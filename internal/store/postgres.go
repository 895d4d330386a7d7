package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daniela/compliance-reviewer/internal/scoring"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS verdicts (
  subject_id      TEXT NOT NULL,
  question_number INTEGER NOT NULL,
  band            TEXT,
  feedback        TEXT NOT NULL DEFAULT '',
  updated_at      TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (subject_id, question_number)
);
CREATE TABLE IF NOT EXISTS identities (
  subject_id   TEXT PRIMARY KEY,
  company_name TEXT NOT NULL,
  set_at       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS override_log (
  id              UUID PRIMARY KEY,
  subject_id      TEXT NOT NULL,
  question_number INTEGER NOT NULL,
  old_band        TEXT,
  new_band        TEXT NOT NULL,
  comment         TEXT NOT NULL DEFAULT '',
  auditor_id      TEXT NOT NULL,
  created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_override_subject ON override_log(subject_id, question_number);
CREATE TABLE IF NOT EXISTS disagreement_log (
  id              UUID PRIMARY KEY,
  subject_id      TEXT NOT NULL,
  question_number INTEGER NOT NULL,
  kind            TEXT NOT NULL,
  requirement     TEXT NOT NULL DEFAULT '',
  reason          TEXT NOT NULL DEFAULT '',
  band            TEXT,
  feedback        TEXT NOT NULL DEFAULT '',
  created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_disagreement_subject ON disagreement_log(subject_id);
CREATE TABLE IF NOT EXISTS auditors (
  id            UUID PRIMARY KEY,
  email         TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL
);
`

// ConnectPostgres establishes a connection pool, verifies it, and ensures
// the schema exists.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// UpsertVerdict writes a verdict, overwriting any prior verdict for the
// same (subject, question).
func (p *Postgres) UpsertVerdict(ctx context.Context, v Verdict) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO verdicts (subject_id, question_number, band, feedback, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (subject_id, question_number)
		 DO UPDATE SET band = $3, feedback = $4, updated_at = $5`,
		v.SubjectID, v.QuestionNumber, bandText(v.Band), v.Feedback, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert verdict: %w", err)
	}
	return nil
}

// GetVerdict retrieves one verdict, or nil when none exists.
func (p *Postgres) GetVerdict(ctx context.Context, subjectID string, questionNumber int) (*Verdict, error) {
	var v Verdict
	var band *string
	err := p.pool.QueryRow(ctx,
		`SELECT subject_id, question_number, band, feedback, updated_at
		 FROM verdicts WHERE subject_id = $1 AND question_number = $2`,
		subjectID, questionNumber,
	).Scan(&v.SubjectID, &v.QuestionNumber, &band, &v.Feedback, &v.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get verdict: %w", err)
	}
	v.Band = bandPtr(band)
	return &v, nil
}

// ListVerdicts retrieves all verdicts for a subject in ascending question order.
func (p *Postgres) ListVerdicts(ctx context.Context, subjectID string) ([]Verdict, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT subject_id, question_number, band, feedback, updated_at
		 FROM verdicts WHERE subject_id = $1 ORDER BY question_number ASC`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []Verdict
	for rows.Next() {
		var v Verdict
		var band *string
		if err := rows.Scan(&v.SubjectID, &v.QuestionNumber, &band, &v.Feedback, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		v.Band = bandPtr(band)
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}

// UpsertIdentity writes the registered company name for a subject.
func (p *Postgres) UpsertIdentity(ctx context.Context, id Identity) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO identities (subject_id, company_name, set_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (subject_id) DO UPDATE SET company_name = $2, set_at = $3`,
		id.SubjectID, id.CompanyName, id.SetAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert identity: %w", err)
	}
	return nil
}

// GetIdentity retrieves the registered identity, or nil when none exists.
func (p *Postgres) GetIdentity(ctx context.Context, subjectID string) (*Identity, error) {
	var id Identity
	err := p.pool.QueryRow(ctx,
		`SELECT subject_id, company_name, set_at FROM identities WHERE subject_id = $1`,
		subjectID,
	).Scan(&id.SubjectID, &id.CompanyName, &id.SetAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return &id, nil
}

// AppendOverride appends a manual-override audit entry.
func (p *Postgres) AppendOverride(ctx context.Context, e OverrideEntry) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO override_log (id, subject_id, question_number, old_band, new_band, comment, auditor_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.SubjectID, e.QuestionNumber, bandText(e.OldBand), string(e.NewBand), e.Comment, e.AuditorID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append override: %w", err)
	}
	return nil
}

// ListOverrides retrieves the override history for one question, oldest first.
func (p *Postgres) ListOverrides(ctx context.Context, subjectID string, questionNumber int) ([]OverrideEntry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, subject_id, question_number, old_band, new_band, comment, auditor_id, created_at
		 FROM override_log WHERE subject_id = $1 AND question_number = $2 ORDER BY created_at ASC`,
		subjectID, questionNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	var entries []OverrideEntry
	for rows.Next() {
		var e OverrideEntry
		var oldBand *string
		var newBand string
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.QuestionNumber, &oldBand, &newBand, &e.Comment, &e.AuditorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		e.OldBand = bandPtr(oldBand)
		if band, ok := scoring.ParseBandName(newBand); ok {
			e.NewBand = band
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AppendDisagreement appends a disagreement or missing-justification entry.
func (p *Postgres) AppendDisagreement(ctx context.Context, e DisagreementEntry) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO disagreement_log (id, subject_id, question_number, kind, requirement, reason, band, feedback, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.SubjectID, e.QuestionNumber, e.Kind, e.Requirement, e.Reason, bandText(e.Band), e.Feedback, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append disagreement: %w", err)
	}
	return nil
}

// ListDisagreements retrieves a subject's disagreement log, oldest first.
func (p *Postgres) ListDisagreements(ctx context.Context, subjectID string) ([]DisagreementEntry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, subject_id, question_number, kind, requirement, reason, band, feedback, created_at
		 FROM disagreement_log WHERE subject_id = $1 ORDER BY created_at ASC`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list disagreements: %w", err)
	}
	defer rows.Close()

	var entries []DisagreementEntry
	for rows.Next() {
		var e DisagreementEntry
		var band *string
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.QuestionNumber, &e.Kind, &e.Requirement, &e.Reason, &band, &e.Feedback, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan disagreement: %w", err)
		}
		e.Band = bandPtr(band)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreateAuditor inserts a new auditor account.
func (p *Postgres) CreateAuditor(ctx context.Context, a Auditor) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO auditors (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		a.ID, a.Email, a.PasswordHash, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auditor: %w", err)
	}
	return nil
}

// GetAuditorByEmail retrieves an auditor account, or nil when none exists.
func (p *Postgres) GetAuditorByEmail(ctx context.Context, email string) (*Auditor, error) {
	var a Auditor
	err := p.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM auditors WHERE email = $1`,
		email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auditor: %w", err)
	}
	return &a, nil
}
