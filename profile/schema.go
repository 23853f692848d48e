package profile

// Schema holds subjects: local account identity plus the search preferences
// and document paths a run needs. The portal secret is never stored here; it
// is supplied by the caller at run time.
const Schema = `
CREATE TABLE IF NOT EXISTS subjects (
    id             TEXT PRIMARY KEY,
    email          TEXT NOT NULL UNIQUE,
    password_hash  TEXT NOT NULL,
    first_name     TEXT NOT NULL DEFAULT '',
    last_name      TEXT NOT NULL DEFAULT '',
    search_query   TEXT NOT NULL DEFAULT '',
    location       TEXT NOT NULL DEFAULT '',
    contract_type  TEXT NOT NULL DEFAULT '',
    cv_path        TEXT NOT NULL DEFAULT '',
    cover_letter_path TEXT NOT NULL DEFAULT '',
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subjects_email ON subjects(email);
`
