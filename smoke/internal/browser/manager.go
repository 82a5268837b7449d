// Package browser is the rod engine: it manages a Chrome process (local
// launch or remote CDP endpoint), opens stealth tabs and exposes them as
// check.Page. Long-lived processes get Chrome relaunched after a recycle
// interval.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/hazyhaar/sitesmoke/smoke/internal/check"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headful runs Chrome with a window on an Xvfb display.
	Headful bool

	// Stealth opens tabs with go-rod/stealth evasions applied.
	Stealth bool

	// XvfbDisplay for headful mode. Default: ":99".
	XvfbDisplay string

	// ResourceBlocking lists resource types to block (fonts, media, stylesheets, images).
	ResourceBlocking []string

	// UserAgent overrides the browser's User-Agent when set.
	UserAgent string

	// Viewport applied to every tab. Default: 1280x720.
	ViewportWidth  int
	ViewportHeight int

	// RecycleInterval is the maximum lifetime of a Chrome process. Default: 4h.
	RecycleInterval time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1280
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 720
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager manages the Chrome lifecycle. It is safe for concurrent use.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *virtualDisplay
	startAt time.Time
	closed  bool
}

// NewManager creates a browser Manager. Chrome starts on the first Open.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Name identifies the engine in reports.
func (m *Manager) Name() string { return "rod" }

// Open returns a tab navigated to pageURL with the network settled. A
// navigation failure is a *result.NavigationError.
func (m *Manager) Open(ctx context.Context, pageURL string, opts check.LoadOptions) (check.Page, error) {
	b, err := m.acquire()
	if err != nil {
		return nil, err
	}
	return openTab(ctx, b, &m.cfg, pageURL, opts)
}

// Close shuts down Chrome and Xvfb.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

// acquire returns a connected browser, launching it on first use and
// relaunching it once the recycle interval has passed.
func (m *Manager) acquire() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}

	if m.browser != nil && time.Since(m.startAt) > m.cfg.RecycleInterval {
		m.cfg.Logger.Info("browser: recycling", "uptime", time.Since(m.startAt))
		if err := m.cleanup(); err != nil {
			m.cfg.Logger.Warn("browser: cleanup during recycle", "error", err)
		}
	}

	if m.browser == nil {
		b, err := m.launch()
		if err != nil {
			return nil, err
		}
		m.browser = b
		m.startAt = time.Now()
	}
	return m.browser, nil
}

func (m *Manager) launch() (*rod.Browser, error) {
	log := m.cfg.Logger

	if m.cfg.Headful && m.cfg.RemoteURL == "" && m.xvfb == nil {
		d, err := startDisplay(m.cfg.XvfbDisplay, m.cfg.ViewportWidth, m.cfg.ViewportHeight, 5*time.Second)
		if err != nil {
			return nil, fmt.Errorf("browser: %w", err)
		}
		m.xvfb = d
		log.Info("browser: xvfb started", "display", d.name, "pid", d.pid())
	}

	var wsURL string

	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New()

		if m.cfg.Headful {
			l = l.Headless(false).Env("DISPLAY="+m.cfg.XvfbDisplay)
		} else {
			l = l.Headless(true)
		}

		if m.cfg.Stealth {
			l = l.Set("disable-blink-features", "AutomationControlled")
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headful", m.cfg.Headful)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	return b, nil
}

func (m *Manager) cleanup() error {
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	if m.xvfb != nil {
		m.xvfb.stop()
		m.xvfb = nil
		m.cfg.Logger.Info("browser: xvfb stopped")
	}
	return err
}
