// Package pwdriver is the playwright engine. It drives Chromium through
// playwright-go and exposes pages as check.Page.
package pwdriver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/hazyhaar/sitesmoke/smoke/internal/check"
	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// Config configures the playwright engine.
type Config struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	// Install downloads the driver and Chromium before the first run.
	Install bool
	Logger  *slog.Logger
}

func (c *Config) defaults() {
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1280
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 720
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Driver owns the playwright process and one Chromium instance.
type Driver struct {
	cfg     Config
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	closed  bool
}

// New creates a Driver. Playwright starts on the first Open.
func New(cfg Config) *Driver {
	cfg.defaults()
	return &Driver{cfg: cfg}
}

// Name identifies the engine in reports.
func (d *Driver) Name() string { return "playwright" }

func (d *Driver) start() (playwright.Browser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("pwdriver: driver is closed")
	}
	if d.browser != nil {
		return d.browser, nil
	}

	if d.cfg.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("pwdriver: install: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("pwdriver: run: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("pwdriver: launch: %w", err)
	}

	d.pw = pw
	d.browser = b
	d.cfg.Logger.Info("pwdriver: chromium launched", "version", b.Version())
	return b, nil
}

// Open creates a context with the configured viewport, navigates and
// waits for network idle.
func (d *Driver) Open(ctx context.Context, pageURL string, opts check.LoadOptions) (check.Page, error) {
	b, err := d.start()
	if err != nil {
		return nil, err
	}

	copts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  d.cfg.ViewportWidth,
			Height: d.cfg.ViewportHeight,
		},
	}
	if d.cfg.UserAgent != "" {
		copts.UserAgent = playwright.String(d.cfg.UserAgent)
	}
	bctx, err := b.NewContext(copts)
	if err != nil {
		return nil, fmt.Errorf("pwdriver: new context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("pwdriver: new page: %w", err)
	}

	timeout := opts.Timeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(dl))
	}

	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		bctx.Close()
		return nil, &result.NavigationError{URL: pageURL, Err: err}
	}

	return &Page{page: page, bctx: bctx, pageURL: pageURL}, nil
}

// Close stops Chromium and the playwright driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true

	var firstErr error
	if d.browser != nil {
		firstErr = d.browser.Close()
		d.browser = nil
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.pw = nil
	}
	return firstErr
}
