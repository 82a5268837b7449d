// Package sink defines output backends for smoke runs.
package sink

import (
	"context"

	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// Sink receives each check as it completes and the final report.
// Implementations deliver them to different backends (console, JSON lines,
// webhook, in-process callback, Prometheus).
type Sink interface {
	SendCheck(ctx context.Context, runID string, c result.Check) error
	SendReport(ctx context.Context, r *result.Report) error
	Close() error
}

type envelope struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`
	Data  any    `json:"data"`
}
