// Package check holds the page assertions of a smoke run. Checks are written
// against the Page interface so the same sequence runs on any engine, and
// on a fake page in tests.
package check

import (
	"context"
	"time"
)

// Viewport is the size of the page's layout viewport in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Page is a loaded page as seen by the checks. Selector methods address the
// first element matching a CSS selector in document order, so a selector
// list like "h1, .hero" resolves to whichever comes first in the DOM.
type Page interface {
	// URL is the address the page was opened with.
	URL() string
	Title(ctx context.Context) (string, error)
	// Visible reports whether the first match is rendered and visible.
	// No match is (false, nil).
	Visible(ctx context.Context, selector string) (bool, error)
	Count(ctx context.Context, selector string) (int, error)
	// Attribute returns the named attribute of the index-th match, or nil
	// when the attribute is absent.
	Attribute(ctx context.Context, selector string, index int, name string) (*string, error)
	// OuterHTML returns the outer HTML of the first match, "" when none.
	OuterHTML(ctx context.Context, selector string) (string, error)
	Viewport(ctx context.Context) (Viewport, error)
	// Screenshot returns a PNG of the viewport, or of the whole document
	// when fullPage is set.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Close() error
}

// LoadOptions bound page navigation.
type LoadOptions struct {
	// Timeout covers navigation and the wait for network idle.
	Timeout time.Duration
	// IdleWindow is how long the network must stay quiet to count as idle.
	IdleWindow time.Duration
}
