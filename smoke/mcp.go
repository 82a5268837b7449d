package smoke

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/sitesmoke/kit"
	"github.com/hazyhaar/sitesmoke/smoke/internal/safeurl"
)

// RegisterMCP registers the smoke_run and smoke_history tools on srv.
func (r *Runner) RegisterMCP(srv *mcp.Server) {
	r.registerRunTool(srv)
	r.registerHistoryTool(srv)
}

// --- smoke_run ---

func (r *Runner) registerRunTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name: "smoke_run",
		Description: "Run the homepage smoke test in a real browser and return the report " +
			"(checks, screenshot path, hero excerpt). A failed check is reported, not raised.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":      map[string]any{"type": "string", "description": "Page to test. Default: the configured URL"},
			"extended": map[string]any{"type": "boolean", "description": "Add the accessibility spot-checks"},
		}, nil),
	}

	run := r.runEndpoint()
	endpoint := func(ctx context.Context, req any) (any, error) {
		rep, err := run(ctx, req)
		if safeurl.Rejected(err) {
			return nil, err
		}
		// The report carries any other failure.
		return rep, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[RunOptions]())
}

// --- smoke_history ---

type historyReq struct {
	Limit int `json:"limit"`
}

func (r *Runner) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "smoke_history",
		Description: "List recent smoke runs, newest first.",
		InputSchema: kit.InputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Maximum runs to return. Default: 20"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		if r.history == nil {
			return nil, fmt.Errorf("history is disabled")
		}
		runs, err := r.history.ListRuns(ctx, req.(*historyReq).Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"runs": runs, "count": len(runs)}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(r.logger, "smoke_history")(endpoint), kit.DecodeJSON[historyReq]())
}
