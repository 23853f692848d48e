package ledger

// Schema is the application-ledger schema. One row per (subject, offer URL);
// re-attempts update the row in place, never duplicate it.
const Schema = `
CREATE TABLE IF NOT EXISTS applications (
    subject_id   TEXT NOT NULL,
    offer_url    TEXT NOT NULL,
    offer_id     TEXT NOT NULL DEFAULT '',
    title        TEXT NOT NULL DEFAULT '',
    company      TEXT NOT NULL DEFAULT '',
    location     TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL,
    applied_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL,
    PRIMARY KEY (subject_id, offer_url)
);
CREATE INDEX IF NOT EXISTS idx_applications_subject ON applications(subject_id, updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(subject_id, status);
`
