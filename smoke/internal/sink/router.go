package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// Router fans out results to all configured sinks. One sink error does
// not block the others: errors are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add appends a sink.
func (r *Router) Add(s Sink) {
	r.sinks = append(r.sinks, s)
}

func (r *Router) SendCheck(ctx context.Context, runID string, c result.Check) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendCheck(ctx, runID, c); err != nil {
			r.logger.Warn("sink: send check failed", "check", c.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendReport(ctx context.Context, rep *result.Report) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendReport(ctx, rep); err != nil {
			r.logger.Warn("sink: send report failed", "run_id", rep.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
