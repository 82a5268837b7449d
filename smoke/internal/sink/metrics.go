package sink

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// Metrics records run and check outcomes as Prometheus metrics.
type Metrics struct {
	runs     *prometheus.CounterVec
	checks   *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the sitesmoke metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitesmoke_runs_total",
			Help: "Smoke runs by outcome.",
		}, []string{"result"}),
		checks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitesmoke_check_results_total",
			Help: "Check results by check name and status.",
		}, []string{"check", "status"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitesmoke_run_duration_seconds",
			Help:    "Wall time of smoke runs.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
	}
}

func (m *Metrics) SendCheck(_ context.Context, _ string, c result.Check) error {
	m.checks.WithLabelValues(c.Name, string(c.Status)).Inc()
	return nil
}

func (m *Metrics) SendReport(_ context.Context, r *result.Report) error {
	outcome := "failed"
	if r.Passed {
		outcome = "passed"
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(r.Duration().Seconds())
	return nil
}

func (m *Metrics) Close() error { return nil }
