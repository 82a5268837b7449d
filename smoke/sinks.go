package smoke

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/sitesmoke/smoke/internal/sink"
	"github.com/hazyhaar/sitesmoke/smoke/internal/store"
	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// Sink is the output interface for checks and reports.
type Sink = sink.Sink

// History is the SQLite run history.
type History = store.Store

// OpenHistory opens (creating if needed) the history database at path.
func OpenHistory(path string) (*History, error) {
	return store.Open(path)
}

// NewConsoleSink creates a sink printing ✅/⚠️/❌ lines.
func NewConsoleSink(w io.Writer) Sink {
	return sink.NewConsole(w)
}

// NewStdoutSink creates a JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry. Zero retries or
// backoff keep the defaults (3 retries, 1s doubling).
func NewWebhookSink(url string, retries int, backoff time.Duration, logger *slog.Logger) Sink {
	opts := []sink.WebhookOption{sink.WithWebhookLogger(logger)}
	if retries > 0 {
		opts = append(opts, sink.WithWebhookRetries(retries))
	}
	if backoff > 0 {
		opts = append(opts, sink.WithWebhookBackoff(backoff))
	}
	return sink.NewWebhook(url, opts...)
}

// NewCallbackSink creates an in-process callback sink. Either function may be nil.
func NewCallbackSink(
	onCheck func(ctx context.Context, runID string, c result.Check) error,
	onReport func(ctx context.Context, r *result.Report) error,
) Sink {
	return sink.NewCallback(onCheck, onReport)
}

// NewMetricsSink registers the sitesmoke Prometheus metrics on reg.
func NewMetricsSink(reg prometheus.Registerer) Sink {
	return sink.NewMetrics(reg)
}

// SinksFromConfig builds the sinks listed in the configuration.
func SinksFromConfig(cfg *Config, stdout io.Writer, logger *slog.Logger) ([]Sink, error) {
	var out []Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "console":
			out = append(out, NewConsoleSink(stdout))
		case "json":
			out = append(out, NewStdoutSink(stdout))
		case "webhook":
			out = append(out, NewWebhookSink(sc.URL, sc.Retries, sc.Backoff, logger))
		default:
			return nil, fmt.Errorf("smoke: unknown sink type %q", sc.Type)
		}
	}
	return out, nil
}
