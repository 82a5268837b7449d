package browser

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/sitesmoke/smoke/internal/check"
)

func TestResourceTypes(t *testing.T) {
	b := &blocker{types: resourceTypes([]string{"fonts", " Media ", "", "stylesheets"})}
	tests := []struct {
		resType proto.NetworkResourceType
		want    bool
	}{
		{proto.NetworkResourceTypeFont, true},
		{proto.NetworkResourceTypeMedia, true},
		{proto.NetworkResourceTypeStylesheet, true},
		{proto.NetworkResourceTypeImage, false},
		{proto.NetworkResourceTypeDocument, false},
	}
	for _, tt := range tests {
		if got := b.blocks(tt.resType); got != tt.want {
			t.Errorf("blocks(%q): got %v, want %v", tt.resType, got, tt.want)
		}
	}
	if len(b.types) != 3 {
		t.Errorf("types: got %v, want 3 entries", b.types)
	}
}

func TestBlockerStop_Idempotent(t *testing.T) {
	var nilBlocker *blocker
	nilBlocker.stop()

	b := &blocker{types: resourceTypes([]string{"fonts"})}
	b.stop()
	b.stop()
}

func TestTab_CloseWithoutPage(t *testing.T) {
	tab := &Tab{block: &blocker{}}
	if err := tab.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if tab.block != nil {
		t.Error("blocker still attached after Close")
	}
	if err := tab.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestXSocket(t *testing.T) {
	for name, want := range map[string]string{
		":99":  "/tmp/.X11-unix/X99",
		":1.0": "/tmp/.X11-unix/X1",
		"42":   "/tmp/.X11-unix/X42",
	} {
		if got := xSocket(name); got != want {
			t.Errorf("xSocket(%q): got %q, want %q", name, got, want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	m := NewManager(Config{})
	if m.cfg.ViewportWidth != 1280 || m.cfg.ViewportHeight != 720 {
		t.Errorf("viewport: got %dx%d", m.cfg.ViewportWidth, m.cfg.ViewportHeight)
	}
	if m.cfg.RecycleInterval != 4*time.Hour {
		t.Errorf("RecycleInterval: got %v", m.cfg.RecycleInterval)
	}
	if m.Name() != "rod" {
		t.Errorf("Name: got %q", m.Name())
	}
}

func TestOpen_ClosedManager(t *testing.T) {
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err := m.Open(context.Background(), "https://example.com", check.LoadOptions{Timeout: time.Second})
	if err == nil {
		t.Fatal("expected error from closed manager")
	}
}

// TestOpen_Chrome needs a local Chrome; set SMOKE_BROWSER=1 to run it.
func TestOpen_Chrome(t *testing.T) {
	if os.Getenv("SMOKE_BROWSER") != "1" {
		t.Skip("set SMOKE_BROWSER=1 to launch Chrome")
	}

	m := NewManager(Config{})
	defer m.Close()

	ctx := context.Background()
	page, err := m.Open(ctx, "data:text/html,<title>Local</title><h1>Hi</h1><img src=x alt=''>",
		check.LoadOptions{Timeout: 20 * time.Second, IdleWindow: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer page.Close()

	title, err := page.Title(ctx)
	if err != nil || title != "Local" {
		t.Fatalf("Title: got %q, %v", title, err)
	}
	if ok, err := page.Visible(ctx, "h1"); err != nil || !ok {
		t.Errorf("Visible(h1): got %v, %v", ok, err)
	}
	alt, err := page.Attribute(ctx, "img", 0, "alt")
	if err != nil || alt == nil {
		t.Errorf("Attribute(img alt): got %v, %v", alt, err)
	}
	vp, err := page.Viewport(ctx)
	if err != nil || vp.Width != 1280 {
		t.Errorf("Viewport: got %+v, %v", vp, err)
	}
}

// TestOpen_ResourceBlockingReleased needs a local Chrome; set SMOKE_BROWSER=1.
func TestOpen_ResourceBlockingReleased(t *testing.T) {
	if os.Getenv("SMOKE_BROWSER") != "1" {
		t.Skip("set SMOKE_BROWSER=1 to launch Chrome")
	}

	m := NewManager(Config{ResourceBlocking: []string{"fonts", "media"}})
	defer m.Close()

	page, err := m.Open(context.Background(), "data:text/html,<title>Blocked</title><h1>Hi</h1>",
		check.LoadOptions{Timeout: 20 * time.Second, IdleWindow: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tab := page.(*Tab)
	if tab.block == nil || tab.block.router == nil {
		t.Fatal("resource blocking not installed")
	}
	blk := tab.block

	if err := tab.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if blk.router != nil {
		t.Error("hijack router not stopped on Close")
	}
}
