package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/daniela/compliance-reviewer/internal/scoring"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS verdicts (
  subject_id      TEXT NOT NULL,
  question_number INTEGER NOT NULL,
  band            TEXT,
  feedback        TEXT NOT NULL DEFAULT '',
  updated_at      DATETIME NOT NULL,
  PRIMARY KEY (subject_id, question_number)
);
CREATE TABLE IF NOT EXISTS identities (
  subject_id   TEXT PRIMARY KEY,
  company_name TEXT NOT NULL,
  set_at       DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS override_log (
  id              TEXT PRIMARY KEY,
  subject_id      TEXT NOT NULL,
  question_number INTEGER NOT NULL,
  old_band        TEXT,
  new_band        TEXT NOT NULL,
  comment         TEXT NOT NULL DEFAULT '',
  auditor_id      TEXT NOT NULL,
  created_at      DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_override_subject ON override_log(subject_id, question_number);
CREATE TABLE IF NOT EXISTS disagreement_log (
  id              TEXT PRIMARY KEY,
  subject_id      TEXT NOT NULL,
  question_number INTEGER NOT NULL,
  kind            TEXT NOT NULL,
  requirement     TEXT NOT NULL DEFAULT '',
  reason          TEXT NOT NULL DEFAULT '',
  band            TEXT,
  feedback        TEXT NOT NULL DEFAULT '',
  created_at      DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_disagreement_subject ON disagreement_log(subject_id);
CREATE TABLE IF NOT EXISTS auditors (
  id            TEXT PRIMARY KEY,
  email         TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_at    DATETIME NOT NULL
);
`

// SQLite implements Store on a local database file.
type SQLite struct {
	sql *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures
// the schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &SQLite{sql: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

// UpsertVerdict writes a verdict, overwriting any prior verdict for the
// same (subject, question).
func (s *SQLite) UpsertVerdict(ctx context.Context, v Verdict) error {
	_, err := s.sql.ExecContext(ctx,
		`INSERT INTO verdicts (subject_id, question_number, band, feedback, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (subject_id, question_number)
		 DO UPDATE SET band = excluded.band, feedback = excluded.feedback, updated_at = excluded.updated_at`,
		v.SubjectID, v.QuestionNumber, bandText(v.Band), v.Feedback, v.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert verdict: %w", err)
	}
	return nil
}

// GetVerdict retrieves one verdict, or nil when none exists.
func (s *SQLite) GetVerdict(ctx context.Context, subjectID string, questionNumber int) (*Verdict, error) {
	var v Verdict
	var band sql.NullString
	err := s.sql.QueryRowContext(ctx,
		`SELECT subject_id, question_number, band, feedback, updated_at
		 FROM verdicts WHERE subject_id = ? AND question_number = ?`,
		subjectID, questionNumber,
	).Scan(&v.SubjectID, &v.QuestionNumber, &band, &v.Feedback, &v.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get verdict: %w", err)
	}
	v.Band = nullableBand(band)
	return &v, nil
}

// ListVerdicts retrieves all verdicts for a subject in ascending question order.
func (s *SQLite) ListVerdicts(ctx context.Context, subjectID string) ([]Verdict, error) {
	rows, err := s.sql.QueryContext(ctx,
		`SELECT subject_id, question_number, band, feedback, updated_at
		 FROM verdicts WHERE subject_id = ? ORDER BY question_number ASC`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []Verdict
	for rows.Next() {
		var v Verdict
		var band sql.NullString
		if err := rows.Scan(&v.SubjectID, &v.QuestionNumber, &band, &v.Feedback, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		v.Band = nullableBand(band)
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}

// UpsertIdentity writes the registered company name for a subject.
func (s *SQLite) UpsertIdentity(ctx context.Context, id Identity) error {
	_, err := s.sql.ExecContext(ctx,
		`INSERT INTO identities (subject_id, company_name, set_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (subject_id) DO UPDATE SET company_name = excluded.company_name, set_at = excluded.set_at`,
		id.SubjectID, id.CompanyName, id.SetAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert identity: %w", err)
	}
	return nil
}

// GetIdentity retrieves the registered identity, or nil when none exists.
func (s *SQLite) GetIdentity(ctx context.Context, subjectID string) (*Identity, error) {
	var id Identity
	err := s.sql.QueryRowContext(ctx,
		`SELECT subject_id, company_name, set_at FROM identities WHERE subject_id = ?`,
		subjectID,
	).Scan(&id.SubjectID, &id.CompanyName, &id.SetAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return &id, nil
}

// AppendOverride appends a manual-override audit entry.
func (s *SQLite) AppendOverride(ctx context.Context, e OverrideEntry) error {
	_, err := s.sql.ExecContext(ctx,
		`INSERT INTO override_log (id, subject_id, question_number, old_band, new_band, comment, auditor_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.SubjectID, e.QuestionNumber, bandText(e.OldBand), string(e.NewBand), e.Comment, e.AuditorID, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append override: %w", err)
	}
	return nil
}

// ListOverrides retrieves the override history for one question, oldest first.
func (s *SQLite) ListOverrides(ctx context.Context, subjectID string, questionNumber int) ([]OverrideEntry, error) {
	rows, err := s.sql.QueryContext(ctx,
		`SELECT id, subject_id, question_number, old_band, new_band, comment, auditor_id, created_at
		 FROM override_log WHERE subject_id = ? AND question_number = ? ORDER BY created_at ASC, rowid ASC`,
		subjectID, questionNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	var entries []OverrideEntry
	for rows.Next() {
		var e OverrideEntry
		var idText, newBand string
		var oldBand sql.NullString
		if err := rows.Scan(&idText, &e.SubjectID, &e.QuestionNumber, &oldBand, &newBand, &e.Comment, &e.AuditorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		if id, err := uuid.Parse(idText); err == nil {
			e.ID = id
		}
		e.OldBand = nullableBand(oldBand)
		if band, ok := scoring.ParseBandName(newBand); ok {
			e.NewBand = band
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AppendDisagreement appends a disagreement or missing-justification entry.
func (s *SQLite) AppendDisagreement(ctx context.Context, e DisagreementEntry) error {
	_, err := s.sql.ExecContext(ctx,
		`INSERT INTO disagreement_log (id, subject_id, question_number, kind, requirement, reason, band, feedback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.SubjectID, e.QuestionNumber, e.Kind, e.Requirement, e.Reason, bandText(e.Band), e.Feedback, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append disagreement: %w", err)
	}
	return nil
}

// ListDisagreements retrieves a subject's disagreement log, oldest first.
func (s *SQLite) ListDisagreements(ctx context.Context, subjectID string) ([]DisagreementEntry, error) {
	rows, err := s.sql.QueryContext(ctx,
		`SELECT id, subject_id, question_number, kind, requirement, reason, band, feedback, created_at
		 FROM disagreement_log WHERE subject_id = ? ORDER BY created_at ASC, rowid ASC`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list disagreements: %w", err)
	}
	defer rows.Close()

	var entries []DisagreementEntry
	for rows.Next() {
		var e DisagreementEntry
		var idText string
		var band sql.NullString
		if err := rows.Scan(&idText, &e.SubjectID, &e.QuestionNumber, &e.Kind, &e.Requirement, &e.Reason, &band, &e.Feedback, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan disagreement: %w", err)
		}
		if id, err := uuid.Parse(idText); err == nil {
			e.ID = id
		}
		e.Band = nullableBand(band)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreateAuditor inserts a new auditor account.
func (s *SQLite) CreateAuditor(ctx context.Context, a Auditor) error {
	_, err := s.sql.ExecContext(ctx,
		`INSERT INTO auditors (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		a.ID.String(), a.Email, a.PasswordHash, a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create auditor: %w", err)
	}
	return nil
}

// GetAuditorByEmail retrieves an auditor account, or nil when none exists.
func (s *SQLite) GetAuditorByEmail(ctx context.Context, email string) (*Auditor, error) {
	var a Auditor
	var idText string
	err := s.sql.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM auditors WHERE email = ?`,
		email,
	).Scan(&idText, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auditor: %w", err)
	}
	if id, err := uuid.Parse(idText); err == nil {
		a.ID = id
	}
	return &a, nil
}

// nullableBand converts a nullable text column into a Band pointer.
func nullableBand(s sql.NullString) *scoring.Band {
	if !s.Valid {
		return nil
	}
	return bandPtr(&s.String)
}
