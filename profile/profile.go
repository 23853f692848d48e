// Package profile stores job-seeker subjects: account identity, search
// preferences and application-document paths.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/postulo/postulo/dbopen"
	"github.com/postulo/postulo/idgen"
)

// ErrNotFound is returned when no subject matches the lookup.
var ErrNotFound = errors.New("profile: subject not found")

// ErrDuplicateEmail is returned when a subject with the same email exists.
var ErrDuplicateEmail = errors.New("profile: email already registered")

// ErrBadCredentials is returned when authentication fails.
var ErrBadCredentials = errors.New("profile: bad credentials")

// Subject is one job-seeker profile.
type Subject struct {
	ID              string
	Email           string
	FirstName       string
	LastName        string
	SearchQuery     string
	Location        string
	ContractType    string
	CVPath          string
	CoverLetterPath string
	CreatedAt       int64
	UpdatedAt       int64
}

// Preferences are the mutable search settings of a subject.
type Preferences struct {
	SearchQuery     string
	Location        string
	ContractType    string
	CVPath          string
	CoverLetterPath string
}

// Store wraps the subjects database.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets a custom ID generator for subject IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates a Store from an already-opened database connection.
// The caller is expected to have applied Schema (dbopen.WithSchema(Schema)).
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		DB:    db,
		newID: idgen.Prefixed("sub_", idgen.Default),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create registers a subject with a bcrypt-hashed account password and
// returns the stored subject.
func (s *Store) Create(ctx context.Context, sub *Subject, password string) (*Subject, error) {
	sub.Email = strings.ToLower(strings.TrimSpace(sub.Email))
	if sub.Email == "" || password == "" {
		return nil, fmt.Errorf("profile: create: email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("profile: hash password: %w", err)
	}

	now := time.Now().UnixMilli()
	sub.ID = s.newID()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err = dbopen.Exec(ctx, s.DB,
		`INSERT INTO subjects (id, email, password_hash, first_name, last_name,
		search_query, location, contract_type, cv_path, cover_letter_path,
		created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Email, string(hash), sub.FirstName, sub.LastName,
		sub.SearchQuery, sub.Location, sub.ContractType, sub.CVPath,
		sub.CoverLetterPath, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("profile: create: %w", err)
	}
	return sub, nil
}

// Get retrieves a subject by ID.
func (s *Store) Get(ctx context.Context, id string) (*Subject, error) {
	return s.scanOne(s.DB.QueryRowContext(ctx, selectSubject+` WHERE id = ?`, id))
}

// GetByEmail retrieves a subject by email (case-insensitive).
func (s *Store) GetByEmail(ctx context.Context, email string) (*Subject, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.scanOne(s.DB.QueryRowContext(ctx, selectSubject+` WHERE email = ?`, email))
}

// Authenticate verifies the account password for an email and returns the
// subject on success.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*Subject, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var hash string
	err := s.DB.QueryRowContext(ctx,
		`SELECT password_hash FROM subjects WHERE email = ?`, email).Scan(&hash)
	if err == sql.ErrNoRows {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("profile: authenticate: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	return s.GetByEmail(ctx, email)
}

// UpdatePreferences replaces a subject's search preferences and document paths.
func (s *Store) UpdatePreferences(ctx context.Context, id string, p Preferences) error {
	res, err := dbopen.Exec(ctx, s.DB,
		`UPDATE subjects SET search_query=?, location=?, contract_type=?,
		cv_path=?, cover_letter_path=?, updated_at=?
		WHERE id=?`,
		p.SearchQuery, p.Location, p.ContractType, p.CVPath, p.CoverLetterPath,
		time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("profile: update preferences: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a subject.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := dbopen.Exec(ctx, s.DB, `DELETE FROM subjects WHERE id = ?`, id)
	return err
}

const selectSubject = `SELECT id, email, first_name, last_name, search_query,
	location, contract_type, cv_path, cover_letter_path, created_at, updated_at
	FROM subjects`

func (s *Store) scanOne(row *sql.Row) (*Subject, error) {
	sub := &Subject{}
	err := row.Scan(&sub.ID, &sub.Email, &sub.FirstName, &sub.LastName,
		&sub.SearchQuery, &sub.Location, &sub.ContractType, &sub.CVPath,
		&sub.CoverLetterPath, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: scan: %w", err)
	}
	return sub, nil
}
