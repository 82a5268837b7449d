package sink

import (
	"context"

	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// CheckFunc is called for each completed check.
type CheckFunc func(ctx context.Context, runID string, c result.Check) error

// ReportFunc is called for each final report.
type ReportFunc func(ctx context.Context, r *result.Report) error

// Callback delivers results via Go function calls, for programs that
// embed the runner and want results in-process.
type Callback struct {
	onCheck  CheckFunc
	onReport ReportFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onCheck CheckFunc, onReport ReportFunc) *Callback {
	return &Callback{onCheck: onCheck, onReport: onReport}
}

func (c *Callback) SendCheck(ctx context.Context, runID string, chk result.Check) error {
	if c.onCheck != nil {
		return c.onCheck(ctx, runID, chk)
	}
	return nil
}

func (c *Callback) SendReport(ctx context.Context, r *result.Report) error {
	if c.onReport != nil {
		return c.onReport(ctx, r)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
