// Command sitesmoke runs a homepage smoke test in a real browser.
//
// Usage:
//
//	sitesmoke run                            # test https://www.cloudbees.io/ once
//	sitesmoke run --url https://example.com --extended
//	sitesmoke serve --config sitesmoke.yaml  # HTTP API + /metrics
//	sitesmoke mcp                            # MCP server on stdio
//	sitesmoke history --limit 10
//
// Every flag can also be set through SMOKE_* environment variables
// (SMOKE_URL, SMOKE_ENGINE, SMOKE_EXTENDED, SMOKE_LOG_LEVEL, ...).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// Run failures are already reported by the console sink.
		if !isRunFailure(err) {
			slog.Error("sitesmoke: fatal", "error", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sitesmoke",
		Short:         "Homepage smoke test in a real browser",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	bindGlobalFlags(root)

	root.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newMCPCmd(),
		newHistoryCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "sitesmoke %s\n", root.Version)
			},
		},
	)
	return root
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger
}
