package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// Schema for the runs table. The full report is kept as JSON; the other
// columns exist for listing and filtering.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	engine      TEXT NOT NULL,
	passed      INTEGER NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	screenshot  TEXT NOT NULL DEFAULT '',
	report      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_url ON runs(url, started_at);
`

// Store wraps the history database.
type Store struct {
	DB *sql.DB
}

// Init creates the runs table if it doesn't exist.
func (s *Store) Init() error {
	if _, err := s.DB.Exec(Schema); err != nil {
		return fmt.Errorf("store: schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// SaveRun inserts or replaces a report.
func (s *Store) SaveRun(ctx context.Context, r *result.Report) error {
	data, err := result.MarshalReport(r)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	_, err = execRetry(ctx, s.DB,
		`INSERT OR REPLACE INTO runs (id, url, engine, passed, started_at, finished_at, screenshot, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.URL, r.Engine, boolInt(r.Passed),
		r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
		r.Screenshot, string(data),
	)
	if err != nil {
		return fmt.Errorf("store: save run %s: %w", r.ID, err)
	}
	return nil
}

// GetRun returns the report with the given ID, or nil if none exists.
func (s *Store) GetRun(ctx context.Context, id string) (*result.Report, error) {
	var data string
	err := s.DB.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run %s: %w", id, err)
	}
	return result.UnmarshalReport([]byte(data))
}

// ListRuns returns up to limit reports, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*result.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx, `SELECT report FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
}

// LatestRun returns the newest report for url, or nil if none exists.
func (s *Store) LatestRun(ctx context.Context, url string) (*result.Report, error) {
	runs, err := s.query(ctx,
		`SELECT report FROM runs WHERE url = ? ORDER BY started_at DESC, id DESC LIMIT 1`, url)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// Prune deletes runs started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := execRetry(ctx, s.DB, `DELETE FROM runs WHERE started_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*result.Report, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	var out []*result.Report
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		r, err := result.UnmarshalReport([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
