package pwdriver

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hazyhaar/sitesmoke/smoke/internal/check"
)

func TestConfigDefaults(t *testing.T) {
	d := New(Config{})
	if d.cfg.ViewportWidth != 1280 || d.cfg.ViewportHeight != 720 {
		t.Errorf("viewport: got %dx%d", d.cfg.ViewportWidth, d.cfg.ViewportHeight)
	}
	if d.Name() != "playwright" {
		t.Errorf("Name: got %q", d.Name())
	}
}

func TestOpen_ClosedDriver(t *testing.T) {
	d := New(Config{})
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := d.Open(context.Background(), "https://example.com", check.LoadOptions{Timeout: time.Second}); err == nil {
		t.Fatal("expected error from closed driver")
	}
}

// TestOpen_Chromium needs the playwright driver; set SMOKE_PLAYWRIGHT=1.
func TestOpen_Chromium(t *testing.T) {
	if os.Getenv("SMOKE_PLAYWRIGHT") != "1" {
		t.Skip("set SMOKE_PLAYWRIGHT=1 to run playwright")
	}

	d := New(Config{Headless: true, Install: os.Getenv("PLAYWRIGHT_PREINSTALLED") != "1"})
	defer d.Close()

	ctx := context.Background()
	page, err := d.Open(ctx, "data:text/html,<title>Local</title><img src=x><h1>Hi</h1>",
		check.LoadOptions{Timeout: 30 * time.Second})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer page.Close()

	alt, err := page.Attribute(ctx, "img", 0, "alt")
	if err != nil {
		t.Fatalf("Attribute: %v", err)
	}
	if alt != nil {
		t.Errorf("alt: got %q, want absent", *alt)
	}
	vp, err := page.Viewport(ctx)
	if err != nil || vp.Width != 1280 || vp.Height != 720 {
		t.Errorf("Viewport: got %+v, %v", vp, err)
	}
}
