package pwdriver

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/hazyhaar/sitesmoke/smoke/internal/check"
)

// Page adapts a playwright page to check.Page. Playwright calls are not
// cancellable; ctx is checked before each one.
type Page struct {
	page    playwright.Page
	bctx    playwright.BrowserContext
	pageURL string
}

var _ check.Page = (*Page)(nil)

func (p *Page) URL() string { return p.pageURL }

func (p *Page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Title()
}

func (p *Page) Visible(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.page.Locator(selector).First().IsVisible()
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.page.Locator(selector).Count()
}

// Attribute evaluates getAttribute in the page so an absent attribute
// (null) stays distinguishable from an empty one.
func (p *Page) Attribute(ctx context.Context, selector string, index int, name string) (*string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := p.page.Locator(selector).Nth(index).Evaluate("(el, name) => el.getAttribute(name)", name)
	if err != nil {
		return nil, fmt.Errorf("pwdriver: attribute %s: %w", name, err)
	}
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("pwdriver: attribute %s: unexpected %T", name, v)
	}
	return &s, nil
}

func (p *Page) OuterHTML(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	loc := p.page.Locator(selector)
	n, err := loc.Count()
	if err != nil || n == 0 {
		return "", err
	}
	v, err := loc.First().Evaluate("el => el.outerHTML", nil)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Viewport is the size the context was created with; a page without a
// fixed viewport reports 0x0.
func (p *Page) Viewport(ctx context.Context) (check.Viewport, error) {
	if err := ctx.Err(); err != nil {
		return check.Viewport{}, err
	}
	size := p.page.ViewportSize()
	if size == nil {
		return check.Viewport{}, nil
	}
	return check.Viewport{Width: size.Width, Height: size.Height}, nil
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
}

// Close closes the page and its browser context.
func (p *Page) Close() error {
	if err := p.page.Close(); err != nil {
		p.bctx.Close()
		return err
	}
	return p.bctx.Close()
}
