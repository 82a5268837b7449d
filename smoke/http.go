package smoke

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/sitesmoke/kit"
	"github.com/hazyhaar/sitesmoke/smoke/internal/httpapi"
	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// Handler returns the HTTP API for this runner. gatherer backs /metrics
// and may be nil.
func (r *Runner) Handler(gatherer prometheus.Gatherer) http.Handler {
	run := r.runEndpoint()

	s := &httpapi.Server{
		Run: func(ctx context.Context, url string, extended bool) (*result.Report, error) {
			resp, err := run(ctx, &RunOptions{URL: url, Extended: extended})
			rep, _ := resp.(*result.Report)
			return rep, err
		},
		DefaultURL: r.cfg.URL,
		Gatherer:   gatherer,
		Logger:     r.logger,
	}
	if r.history != nil {
		s.History = r.history
	}
	return s.Handler()
}

// runEndpoint is smoke_run as remote callers reach it. The request is a
// *RunOptions.
func (r *Runner) runEndpoint() kit.Endpoint {
	return kit.Chain(
		kit.Logging(r.logger, "smoke_run"),
		r.guardTarget,
	)(func(ctx context.Context, req any) (any, error) {
		opts := *req.(*RunOptions)
		return r.execute(ctx, opts, r.guards(opts.URL))
	})
}

// guardTarget rejects URL overrides aimed at private networks before any
// run starts.
func (r *Runner) guardTarget(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		if err := r.checkRemoteTarget(ctx, req.(*RunOptions).URL); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}
