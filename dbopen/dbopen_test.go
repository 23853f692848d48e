package dbopen_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/postulo/postulo/dbopen"
)

func TestOpen(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatal(err)
	}
	// :memory: may report "memory" instead of "wal" for journal_mode,
	// but the PRAGMA was still executed successfully.
	if journalMode != "wal" && journalMode != "memory" {
		t.Fatalf("journal_mode = %q, want wal or memory", journalMode)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatal(err)
	}
	if busyTimeout != 10_000 {
		t.Fatalf("busy_timeout = %d, want 10000", busyTimeout)
	}
}

func TestOpen_WithSchema(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(`CREATE TABLE things (id TEXT PRIMARY KEY)`))

	if _, err := db.Exec(`INSERT INTO things (id) VALUES ('a')`); err != nil {
		t.Fatalf("insert into schema table: %v", err)
	}
}

func TestOpen_WithMkdirAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "test.db")

	db, err := dbopen.Open(path, dbopen.WithMkdirAll())
	if err != nil {
		t.Fatalf("Open with mkdir: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("parent dir not created: %v", err)
	}
}

func TestIsBusy(t *testing.T) {
	// WHAT: Only lock-contention errors qualify for the Exec retry.
	busy := []error{
		errors.New("SQLITE_BUSY: database is busy"),
		errors.New("database is locked"),
		errors.New("database table is locked"),
	}
	for _, err := range busy {
		if !dbopen.IsBusy(err) {
			t.Errorf("IsBusy(%v) = false, want true", err)
		}
	}
	if dbopen.IsBusy(nil) {
		t.Error("IsBusy(nil) = true, want false")
	}
	if dbopen.IsBusy(errors.New("UNIQUE constraint failed")) {
		t.Error("IsBusy(constraint error) = true, want false")
	}
}

func TestExec_Writes(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(`CREATE TABLE rows (id TEXT PRIMARY KEY)`))
	ctx := context.Background()

	if _, err := dbopen.Exec(ctx, db, `INSERT INTO rows (id) VALUES (?)`, "x"); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM rows`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestExec_NonBusyErrorReturnsImmediately(t *testing.T) {
	// WHY: A constraint violation must not burn retry backoff.
	db := dbopen.OpenMemory(t, dbopen.WithSchema(`CREATE TABLE rows (id TEXT PRIMARY KEY)`))
	ctx := context.Background()

	if _, err := dbopen.Exec(ctx, db, `INSERT INTO rows (id) VALUES (?)`, "x"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	start := time.Now()
	_, err := dbopen.Exec(ctx, db, `INSERT INTO rows (id) VALUES (?)`, "x")
	if err == nil {
		t.Fatal("Exec on duplicate key: want error")
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("Exec retried a non-busy error, took %v", elapsed)
	}
}
