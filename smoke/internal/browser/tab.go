package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/sitesmoke/smoke/internal/check"
	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// Tab wraps a rod page as a check.Page.
type Tab struct {
	page    *rod.Page
	block   *blocker
	pageURL string
}

var _ check.Page = (*Tab)(nil)

// openTab creates a tab, applies viewport, user agent and resource
// blocking, navigates and waits for the network to go quiet.
func openTab(ctx context.Context, b *rod.Browser, cfg *Config, pageURL string, opts check.LoadOptions) (*Tab, error) {
	var page *rod.Page
	var err error

	if cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	t := &Tab{page: page, pageURL: pageURL}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: set viewport: %w", err)
	}

	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			t.Close()
			return nil, fmt.Errorf("browser: set user agent: %w", err)
		}
	}

	if len(cfg.ResourceBlocking) > 0 {
		t.block, err = startBlocker(page, cfg.ResourceBlocking)
		if err != nil {
			cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	p := page.Context(navCtx)
	waitIdle := p.WaitRequestIdle(opts.IdleWindow, nil, nil, nil)

	if err := p.Navigate(pageURL); err != nil {
		t.Close()
		return nil, &result.NavigationError{URL: pageURL, Err: err}
	}

	waitIdle()
	if err := p.WaitLoad(); err != nil {
		t.Close()
		return nil, &result.NavigationError{URL: pageURL, Err: err}
	}
	if err := navCtx.Err(); err != nil {
		t.Close()
		return nil, &result.NavigationError{URL: pageURL, Err: fmt.Errorf("network did not settle: %w", err)}
	}

	cfg.Logger.Debug("browser: page loaded", "url", pageURL)
	return t, nil
}

func (t *Tab) URL() string { return t.pageURL }

func (t *Tab) Title(ctx context.Context) (string, error) {
	info, err := t.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.Title, nil
}

// elements never waits: an absent selector is an empty list.
func (t *Tab) elements(ctx context.Context, selector string) (rod.Elements, error) {
	els, err := t.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query %s: %w", selector, err)
	}
	return els, nil
}

func (t *Tab) Visible(ctx context.Context, selector string) (bool, error) {
	els, err := t.elements(ctx, selector)
	if err != nil || els.Empty() {
		return false, err
	}
	return els.First().Visible()
}

func (t *Tab) Count(ctx context.Context, selector string) (int, error) {
	els, err := t.elements(ctx, selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (t *Tab) Attribute(ctx context.Context, selector string, index int, name string) (*string, error) {
	els, err := t.elements(ctx, selector)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(els) {
		return nil, fmt.Errorf("browser: %s has no element %d", selector, index)
	}
	return els[index].Attribute(name)
}

func (t *Tab) OuterHTML(ctx context.Context, selector string) (string, error) {
	els, err := t.elements(ctx, selector)
	if err != nil || els.Empty() {
		return "", err
	}
	return els.First().HTML()
}

func (t *Tab) Viewport(ctx context.Context) (check.Viewport, error) {
	res, err := t.page.Context(ctx).Eval(`() => JSON.stringify({
		width: window.innerWidth,
		height: window.innerHeight
	})`)
	if err != nil {
		return check.Viewport{}, fmt.Errorf("browser: viewport: %w", err)
	}

	var vp check.Viewport
	if err := json.Unmarshal([]byte(res.Value.Str()), &vp); err != nil {
		return check.Viewport{}, fmt.Errorf("browser: viewport: %w", err)
	}
	return vp, nil
}

func (t *Tab) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := t.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// Close stops resource blocking and closes the tab.
func (t *Tab) Close() error {
	t.block.stop()
	t.block = nil
	if t.page == nil {
		return nil
	}
	err := t.page.Close()
	t.page = nil
	return err
}
