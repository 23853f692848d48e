package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Lock contention on a shared SQLite file can surface as SQLITE_BUSY even
// with busy_timeout set, when two writers escalate their locks at the same
// moment. Exec gives statement writes a short bounded retry so concurrent
// runs appending to the same database do not fail on a transient lock.

const (
	busyAttempts = 3
	busyBackoff  = 100 * time.Millisecond
)

// IsBusy reports whether err is an SQLite lock-contention error.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// Exec runs one statement, retrying on lock contention with linear backoff.
// Any other error returns immediately.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	for attempt := 1; ; attempt++ {
		res, err := db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !IsBusy(err) || attempt == busyAttempts {
			return nil, err
		}
		if err := sleepCtx(ctx, time.Duration(attempt)*busyBackoff); err != nil {
			return nil, fmt.Errorf("dbopen: retry wait: %w", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
