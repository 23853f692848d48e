// Package ledger is the durable, deduplicated record of application attempts.
//
// Every terminal outcome of an offer (submitted, failed, skipped) is written
// here. The composite key (subject_id, offer_url) makes writes idempotent: a
// re-attempt against the same offer overwrites status and timestamp instead of
// inserting a second row. Runs consult the ledger before touching the browser
// so that repeat runs stay cheap and never re-trigger external side effects.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/postulo/postulo/dbopen"
)

// Status values recorded for an application attempt.
const (
	StatusSubmitted       = "submitted"
	StatusAlreadyApplied  = "already_applied"
	StatusSkippedExternal = "skipped_external"
	StatusFailed          = "failed"
)

// Entry is one ledger row.
type Entry struct {
	SubjectID   string
	OfferURL    string
	OfferID     string
	Title       string
	Company     string
	Location    string
	Description string
	Status      string
	AppliedAt   int64
	UpdatedAt   int64
}

// Store wraps the ledger database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
// The caller is expected to have applied Schema (dbopen.WithSchema(Schema)).
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Has reports whether an attempt against offerURL is already recorded for the
// subject, regardless of its status.
func (s *Store) Has(ctx context.Context, subjectID, offerURL string) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE subject_id = ? AND offer_url = ?`,
		subjectID, offerURL).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("ledger: has: %w", err)
	}
	return n > 0, nil
}

// Record upserts one attempt. A later call with the same (subject, offer URL)
// overwrites status, description and updated_at; applied_at keeps the first
// attempt's timestamp.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.SubjectID == "" || e.OfferURL == "" {
		return fmt.Errorf("ledger: record: subject_id and offer_url are required")
	}
	if e.Status == "" {
		return fmt.Errorf("ledger: record: status is required")
	}
	now := time.Now().UnixMilli()
	if e.AppliedAt == 0 {
		e.AppliedAt = now
	}
	e.UpdatedAt = now

	// Concurrent runs for different subjects share this database; Exec absorbs
	// transient lock contention between their upserts.
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO applications (subject_id, offer_url, offer_id, title, company,
		location, description, status, applied_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_id, offer_url) DO UPDATE SET
		    offer_id    = excluded.offer_id,
		    title       = excluded.title,
		    company     = excluded.company,
		    location    = excluded.location,
		    description = excluded.description,
		    status      = excluded.status,
		    updated_at  = excluded.updated_at`,
		e.SubjectID, e.OfferURL, e.OfferID, e.Title, e.Company,
		e.Location, e.Description, e.Status, e.AppliedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: record: %w", err)
	}
	return nil
}

// Get returns the entry for (subject, offer URL), or nil if none exists.
func (s *Store) Get(ctx context.Context, subjectID, offerURL string) (*Entry, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT subject_id, offer_url, offer_id, title, company, location,
		description, status, applied_at, updated_at
		FROM applications WHERE subject_id = ? AND offer_url = ?`,
		subjectID, offerURL)
	e := &Entry{}
	err := row.Scan(&e.SubjectID, &e.OfferURL, &e.OfferID, &e.Title, &e.Company,
		&e.Location, &e.Description, &e.Status, &e.AppliedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get: %w", err)
	}
	return e, nil
}

// List returns a subject's entries, most recently updated first. A non-empty
// status filters to that status (used to target failed offers for a manual
// retry pass).
func (s *Store) List(ctx context.Context, subjectID, status string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT subject_id, offer_url, offer_id, title, company, location,
		description, status, applied_at, updated_at
		FROM applications WHERE subject_id = ?`
	args := []any{subjectID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.SubjectID, &e.OfferURL, &e.OfferID, &e.Title, &e.Company,
			&e.Location, &e.Description, &e.Status, &e.AppliedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ledger: list scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of entries for a subject.
func (s *Store) Count(ctx context.Context, subjectID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE subject_id = ?`, subjectID).Scan(&n)
	return n, err
}
