// Package checktest provides an in-memory check.Page for tests.
package checktest

import (
	"context"
	"fmt"
	"sync"

	"github.com/hazyhaar/sitesmoke/smoke/internal/check"
)

var _ check.Page = (*Page)(nil)

// Page is a scripted check.Page. Zero values mean "absent": unknown
// selectors are invisible, counted as 0, and have no attributes.
type Page struct {
	PageURL   string
	TitleText string
	TitleErr  error

	// Shown maps a selector to its visibility.
	Shown map[string]bool
	// ShownErr makes Visible fail for a selector.
	ShownErr map[string]error
	// Counts maps a selector to its match count.
	Counts map[string]int
	// Attrs maps "selector@attr" to per-index values; nil entries are
	// absent attributes.
	Attrs map[string][]*string
	HTML  map[string]string

	VP      check.Viewport
	VPErr   error
	Shot    []byte
	ShotErr error

	mu     sync.Mutex
	calls  []string
	closed bool
}

// Str returns a pointer to s, for Attrs literals.
func Str(s string) *string { return &s }

// Default returns a page that satisfies every check with the default
// selectors of the CloudBees homepage.
func Default() *Page {
	return &Page{
		PageURL:   "https://www.cloudbees.io/",
		TitleText: "CloudBees | The Software Delivery Platform",
		Shown: map[string]bool{
			"#navbar": true,
			`img[alt*="CloudBees"], [aria-label*="CloudBees"], .logo`: true,
			`h1, .hero, [class*="hero"], [data-testid*="hero"]`:       true,
			"h1": true,
		},
		Counts: map[string]int{
			`meta[name="description"]`: 1,
			"img":                      2,
		},
		Attrs: map[string][]*string{
			"img@alt": {Str("CloudBees logo"), Str("")},
		},
		HTML: map[string]string{
			`h1, .hero, [class*="hero"], [data-testid*="hero"]`: "<h1>Ship software <em>faster</em></h1>",
		},
		VP:   check.Viewport{Width: 1280, Height: 720},
		Shot: []byte("\x89PNG\r\n\x1a\n"),
	}
}

func (p *Page) record(call string) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

// Calls returns the page calls in order, as "method:selector".
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Called reports whether a "method:selector" call was made.
func (p *Page) Called(call string) bool {
	for _, c := range p.Calls() {
		if c == call {
			return true
		}
	}
	return false
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) URL() string { return p.PageURL }

func (p *Page) Title(context.Context) (string, error) {
	p.record("title")
	return p.TitleText, p.TitleErr
}

func (p *Page) Visible(_ context.Context, selector string) (bool, error) {
	p.record("visible:" + selector)
	if err := p.ShownErr[selector]; err != nil {
		return false, err
	}
	return p.Shown[selector], nil
}

func (p *Page) Count(_ context.Context, selector string) (int, error) {
	p.record("count:" + selector)
	return p.Counts[selector], nil
}

func (p *Page) Attribute(_ context.Context, selector string, index int, name string) (*string, error) {
	p.record(fmt.Sprintf("attr:%s@%s[%d]", selector, name, index))
	vals := p.Attrs[selector+"@"+name]
	if index >= len(vals) {
		return nil, nil
	}
	return vals[index], nil
}

func (p *Page) OuterHTML(_ context.Context, selector string) (string, error) {
	p.record("html:" + selector)
	return p.HTML[selector], nil
}

func (p *Page) Viewport(context.Context) (check.Viewport, error) {
	p.record("viewport")
	return p.VP, p.VPErr
}

func (p *Page) Screenshot(_ context.Context, fullPage bool) ([]byte, error) {
	p.record(fmt.Sprintf("screenshot:%v", fullPage))
	return p.Shot, p.ShotErr
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
