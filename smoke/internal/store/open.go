// Package store persists smoke run history in SQLite.
//
// Databases are opened with WAL journaling, a 10s busy timeout and
// synchronous=NORMAL. Writes retry on SQLITE_BUSY so that a CLI run and a
// long-lived server can share one history file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

const maxRetries = 3

// Open opens (creating if needed) the history database at path, applies
// pragmas and the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	s := &Store{DB: db}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory store closed by t.Cleanup.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// isBusy reports whether err indicates an SQLite BUSY condition.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// execRetry runs a statement, retrying on SQLITE_BUSY with 100/200/300 ms backoff.
func execRetry(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	for i := range maxRetries {
		res, err := db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !isBusy(err) || i == maxRetries-1 {
			return nil, err
		}
		t := time.NewTimer(time.Duration(100*(i+1)) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("store: context cancelled during retry: %w", ctx.Err())
		case <-t.C:
		}
	}
	return nil, fmt.Errorf("store: max retries exceeded")
}
