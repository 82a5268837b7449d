package kit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	want := []string{"a_before", "b_before", "endpoint", "b_after", "a_after"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order: got %v, want %v", order, want)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	errFail := errors.New("fail")

	ep := Logging(logger, "smoke_run")(func(context.Context, any) (any, error) {
		return nil, errFail
	})
	ctx := WithRequestID(WithTransport(context.Background(), "mcp"), "req_1")
	if _, err := ep(ctx, nil); !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}

	out := buf.String()
	for _, want := range []string{`"op":"smoke_run"`, `"transport":"mcp"`, `"request_id":"req_1"`, `"error":"fail"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s: %s", want, out)
		}
	}
}

func TestContext_Defaults(t *testing.T) {
	ctx := context.Background()
	if v := GetTransport(ctx); v != "http" {
		t.Fatalf("default transport: got %q, want 'http'", v)
	}
	if v := GetRequestID(ctx); v != "" {
		t.Fatalf("request_id default: got %q", v)
	}
}

type echoReq struct {
	Msg string `json:"msg"`
}

func session(t *testing.T) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)

	RegisterMCPTool(srv, &mcp.Tool{
		Name:        "echo",
		Description: "Echo msg with the transport.",
		InputSchema: InputSchema(map[string]any{
			"msg": map[string]any{"type": "string"},
		}, nil),
	}, func(ctx context.Context, req any) (any, error) {
		r := req.(*echoReq)
		if r.Msg == "boom" {
			return nil, errors.New("boom")
		}
		return map[string]string{"msg": r.Msg, "transport": GetTransport(ctx)}, nil
	}, DecodeJSON[echoReq]())

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	s, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegisterMCPTool(t *testing.T) {
	s := session(t)

	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"msg": "hi"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %v", res.GetError())
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &got); err != nil {
		t.Fatal(err)
	}
	if got["msg"] != "hi" || got["transport"] != "mcp" {
		t.Errorf("got %v", got)
	}
}

func TestRegisterMCPTool_EndpointError(t *testing.T) {
	s := session(t)

	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"msg": "boom"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error")
	}
}
