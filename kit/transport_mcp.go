package kit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DecodeFunc extracts the typed request from MCP tool arguments.
type DecodeFunc func(*mcp.CallToolRequest) (any, error)

// RegisterMCPTool registers an Endpoint as an MCP tool. Decode errors and
// endpoint errors become tool errors (IsError results), not protocol
// errors. Successful responses are returned as one JSON text content.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode DecodeFunc) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = WithTransport(ctx, "mcp")

		decoded, err := decode(req)
		if err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}

		resp, err := endpoint(ctx, decoded)
		if err != nil {
			return toolError(errors.New(err.Error())), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// DecodeJSON returns a DecodeFunc that unmarshals the arguments into a new
// T. Empty arguments decode to the zero T.
func DecodeJSON[T any]() DecodeFunc {
	return func(req *mcp.CallToolRequest) (any, error) {
		var v T
		if len(req.Params.Arguments) == 0 {
			return &v, nil
		}
		if err := json.Unmarshal(req.Params.Arguments, &v); err != nil {
			return nil, err
		}
		return &v, nil
	}
}

// InputSchema builds a JSON object schema.
func InputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
