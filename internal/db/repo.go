// Package db keeps patient records and conversation state in Postgres.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nephro-assistant/internal/core"
	"nephro-assistant/internal/patients"
	"nephro-assistant/pkg"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

// Repository wraps database operations for patients and sessions.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// UpsertPatient creates or replaces the record identified by the patient's
// normalized name and discharge date.  Records sharing a name but not a
// discharge date are kept side by side.
func (r *Repository) UpsertPatient(ctx context.Context, rec pkg.PatientRecord) error {
	key := patients.NormalizeName(rec.PatientName)
	if key == "" {
		return errors.New("patient record has no name")
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode patient %q: %w", rec.PatientName, err)
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO patients (patient_name, name_key, discharge_date, record)
         VALUES ($1, $2, $3, $4)
         ON CONFLICT (name_key, discharge_date)
         DO UPDATE SET patient_name = EXCLUDED.patient_name, record = EXCLUDED.record, updated_at = NOW()`,
		rec.PatientName, key, strings.TrimSpace(rec.DischargeDate), body,
	)
	if err != nil {
		return fmt.Errorf("upsert patient %q: %w", rec.PatientName, err)
	}
	return nil
}

// FindByName returns patients whose normalized name equals the query, or
// failing that, whose lower-cased name contains it.
func (r *Repository) FindByName(ctx context.Context, name string) ([]pkg.PatientRecord, error) {
	key := patients.NormalizeName(name)
	if key == "" {
		return nil, nil
	}
	exact, err := r.queryPatients(ctx,
		`SELECT record FROM patients WHERE name_key = $1 ORDER BY id`, key)
	if err != nil || len(exact) > 0 {
		return exact, err
	}
	return r.queryPatients(ctx,
		`SELECT record FROM patients WHERE strpos(lower(patient_name), $1) > 0 ORDER BY id`, key)
}

func (r *Repository) queryPatients(ctx context.Context, query string, arg string) ([]pkg.PatientRecord, error) {
	rows, err := r.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()
	var out []pkg.PatientRecord
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var rec pkg.PatientRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("decode patient record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetSession returns the stored state for id, or sql.ErrNoRows.
func (r *Repository) GetSession(ctx context.Context, id string) (*core.Session, error) {
	var body []byte
	err := r.DB.QueryRowContext(ctx,
		`SELECT state FROM chat_sessions WHERE id = $1`, id,
	).Scan(&body)
	if err != nil {
		return nil, err
	}
	sess, err := core.UnmarshalState(body)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return sess, nil
}

// PutSession writes the full state for sess.ID.
func (r *Repository) PutSession(ctx context.Context, sess *core.Session) error {
	body, err := core.MarshalState(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	var patientName sql.NullString
	if sess.PatientName != "" {
		patientName = sql.NullString{String: sess.PatientName, Valid: true}
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, patient_name, state)
         VALUES ($1, $2, $3)
         ON CONFLICT (id)
         DO UPDATE SET patient_name = EXCLUDED.patient_name, state = EXCLUDED.state, updated_at = NOW()`,
		sess.ID, patientName, body,
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// SessionStore persists sessions through a Repository and announces every
// saved turn on the notifier channel.
type SessionStore struct {
	repo            *Repository
	notifier        *Notifier
	defaultAllowWeb bool
}

// NewSessionStore returns a store.  notifier may be nil.
func NewSessionStore(repo *Repository, notifier *Notifier, defaultAllowWeb bool) *SessionStore {
	return &SessionStore{repo: repo, notifier: notifier, defaultAllowWeb: defaultAllowWeb}
}

// Load returns the stored session or a fresh one for an unknown id.
func (s *SessionStore) Load(ctx context.Context, id string) (*core.Session, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		fresh := core.NewSession(id)
		fresh.AllowWeb = s.defaultAllowWeb
		return fresh, nil
	}
	return sess, err
}

// Save writes sess and sends a notification carrying its id.
func (s *SessionStore) Save(ctx context.Context, sess *core.Session) error {
	if err := s.repo.PutSession(ctx, sess); err != nil {
		return err
	}
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Notify(ctx, sess.ID)
}
