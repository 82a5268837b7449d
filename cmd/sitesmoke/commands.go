package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/sitesmoke/smoke"
	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// isRunFailure reports whether err is a smoke failure rather than a
// setup error.
func isRunFailure(err error) bool {
	var nav *result.NavigationError
	var ae *result.AssertionError
	return errors.As(err, &nav) || errors.As(err, &ae)
}

var openHistory = smoke.OpenHistory

// newRunner builds a runner with the configured sinks. console is where
// human-readable lines go; nil means no console sink.
func newRunner(cfg *smoke.Config, logger *slog.Logger, console io.Writer, extra ...smoke.Sink) (*smoke.Runner, error) {
	out := console
	if out == nil {
		out = os.Stderr
	}
	sinks, err := smoke.SinksFromConfig(cfg, out, logger)
	if err != nil {
		return nil, err
	}
	if console != nil && len(cfg.Sinks) == 0 {
		sinks = append(sinks, smoke.NewConsoleSink(console))
	}
	sinks = append(sinks, extra...)

	opts := []smoke.Option{smoke.WithSinks(sinks...)}
	var h *smoke.History
	if cfg.History.Path != "" {
		h, err = openHistory(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, smoke.WithHistory(h))
	}
	r, err := smoke.New(cfg, logger, opts...)
	if err != nil {
		if h != nil {
			h.Close()
		}
		return nil, err
	}
	return r, nil
}

func closeRunner(r *smoke.Runner, logger *slog.Logger) {
	if err := r.Close(); err != nil {
		logger.Warn("sitesmoke: close engine", "error", err)
	}
	if h := r.History(); h != nil {
		h.Close()
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the smoke test once; exit 1 on failure",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, v, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(v.GetString("log-level"))

			r, err := newRunner(cfg, logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeRunner(r, logger)

			_, err = r.Run(cmd.Context(), smoke.RunOptions{})
			return err
		},
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and /metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, v, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr := v.GetString("addr"); addr != "" {
				cfg.Serve.Addr = addr
			}
			logger := newLogger(v.GetString("log-level"))

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			r, err := newRunner(cfg, logger, nil, smoke.NewMetricsSink(reg))
			if err != nil {
				return err
			}
			defer closeRunner(r, logger)

			return serveHTTP(cmd.Context(), &http.Server{
				Addr:              cfg.Serve.Addr,
				Handler:           r.Handler(reg),
				ReadHeaderTimeout: 10 * time.Second,
			}, logger)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8086)")
	return cmd
}

func serveHTTP(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("sitesmoke: http listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("sitesmoke: shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the smoke_run and smoke_history tools over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, v, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(v.GetString("log-level"))

			// stdout carries the protocol: no console sink.
			r, err := newRunner(cfg, logger, nil)
			if err != nil {
				return err
			}
			defer closeRunner(r, logger)

			srv := mcp.NewServer(&mcp.Implementation{Name: "sitesmoke", Version: version}, nil)
			r.RegisterMCP(srv)
			return srv.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent runs from the history database as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, v, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.History.Path == "" {
				return errors.New("history: no database (set --history or history.path)")
			}
			h, err := openHistory(cfg.History.Path)
			if err != nil {
				return err
			}
			defer h.Close()

			runs, err := h.ListRuns(cmd.Context(), v.GetInt("limit"))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, rep := range runs {
				if err := enc.Encode(rep); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum runs to print")
	return cmd
}
