// Package fetcher implements the preflight: a plain HTTP GET of the target
// before any browser starts. It catches DNS and connection failures early
// and records what the server-rendered head already declares.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// Fetcher performs preflight GETs.
type Fetcher struct {
	client *http.Client
	ua     string
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second, CheckRedirect: checkRedirect},
		ua:     "Mozilla/5.0 (compatible; sitesmoke/1.0)",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// RedirectGuard vets the target of a redirect before it is followed.
type RedirectGuard func(ctx context.Context, url string) error

type guardKey struct{}

// WithRedirectGuard returns a context under which Fetch passes every
// redirect hop to guard. A guard error stops the fetch and is returned
// wrapped in the NavigationError.
func WithRedirectGuard(ctx context.Context, guard RedirectGuard) context.Context {
	return context.WithValue(ctx, guardKey{}, guard)
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("fetcher: stopped after 10 redirects")
	}
	if guard, ok := req.Context().Value(guardKey{}).(RedirectGuard); ok && guard != nil {
		if err := guard(req.Context(), req.URL.String()); err != nil {
			return fmt.Errorf("fetcher: redirect to %s: %w", req.URL.Redacted(), err)
		}
	}
	return nil
}

// Fetch GETs pageURL. A transport failure is a *result.NavigationError;
// any HTTP status is returned in the Preflight for the caller to judge.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*result.Preflight, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &result.NavigationError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	// Cap read to 10MB to prevent runaway downloads.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}

	pf := inspectHead(body)
	pf.StatusCode = resp.StatusCode
	pf.ScriptShell = IsScriptShell(body)

	f.logger.Debug("fetcher: fetched",
		"url", pageURL, "status", resp.StatusCode,
		"size", len(body), "script_shell", pf.ScriptShell)

	return pf, nil
}

// inspectHead extracts the title and the presence of a meta description.
func inspectHead(body []byte) *result.Preflight {
	pf := &result.Preflight{}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return pf
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if pf.Title == "" && n.FirstChild != nil {
					pf.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case atom.Meta:
				if strings.EqualFold(attr(n, "name"), "description") {
					pf.HasDescription = true
				}
			case atom.Body:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return pf
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
