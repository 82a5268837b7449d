package check

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// Check names as they appear in reports.
const (
	NameTitle           = "title"
	NameNavigation      = "navigation"
	NameLogo            = "logo"
	NameHero            = "hero"
	NameViewport        = "viewport"
	NameMetaDescription = "meta_description"
	NameHeading         = "heading"
	NameImageAlt        = "image_alt"
)

// Title asserts the page title matches pattern.
func Title(ctx context.Context, p Page, pattern *regexp.Regexp) result.Check {
	start := time.Now()
	c := result.Check{Name: NameTitle, Severity: result.Hard}

	title, err := p.Title(ctx)
	switch {
	case err != nil:
		c.Status = result.StatusFail
		c.Detail = fmt.Sprintf("read title: %v", err)
	case !pattern.MatchString(title):
		c.Status = result.StatusFail
		c.Detail = fmt.Sprintf("title %q does not match %s", title, pattern)
	default:
		c.Status = result.StatusPass
		c.Detail = fmt.Sprintf("title %q", title)
	}
	c.DurationMS = time.Since(start).Milliseconds()
	return c
}

// Navigation tries the candidates in order; the first visible one wins.
// It never fails the run: when nothing is visible the result is a warning.
// Visibility errors count as not visible.
func Navigation(ctx context.Context, p Page, candidates []string) result.Check {
	start := time.Now()
	c := result.Check{Name: NameNavigation, Severity: result.Soft}

	for _, sel := range candidates {
		ok, err := p.Visible(ctx, sel)
		if err != nil || !ok {
			continue
		}
		c.Status = result.StatusPass
		c.Selector = sel
		c.Detail = "Navigation found using selector: " + sel
		c.DurationMS = time.Since(start).Milliseconds()
		return c
	}

	c.Status = result.StatusWarn
	c.Selector = strings.Join(candidates, ", ")
	c.Detail = "Navigation bar not found with any of the expected selectors. Skipping navigation visibility check."
	c.DurationMS = time.Since(start).Milliseconds()
	return c
}

// Visible asserts that the first match of selector becomes visible within
// timeout, polling every interval.
func Visible(ctx context.Context, p Page, name, selector string, timeout, interval time.Duration) result.Check {
	start := time.Now()
	c := result.Check{Name: name, Severity: result.Hard, Selector: selector}

	if err := WaitVisible(ctx, p, selector, timeout, interval); err != nil {
		c.Status = result.StatusFail
		c.Detail = err.Error()
	} else {
		c.Status = result.StatusPass
		c.Detail = "visible"
	}
	c.DurationMS = time.Since(start).Milliseconds()
	return c
}

// ViewportSize asserts the reported viewport has positive dimensions.
func ViewportSize(ctx context.Context, p Page) result.Check {
	start := time.Now()
	c := result.Check{Name: NameViewport, Severity: result.Hard}

	vp, err := p.Viewport(ctx)
	switch {
	case err != nil:
		c.Status = result.StatusFail
		c.Detail = fmt.Sprintf("read viewport: %v", err)
	case vp.Width <= 0 || vp.Height <= 0:
		c.Status = result.StatusFail
		c.Detail = fmt.Sprintf("viewport %dx%d is not positive", vp.Width, vp.Height)
	default:
		c.Status = result.StatusPass
		c.Detail = fmt.Sprintf("%dx%d", vp.Width, vp.Height)
	}
	c.DurationMS = time.Since(start).Milliseconds()
	return c
}

// MetaDescription asserts that a meta description tag exists.
func MetaDescription(ctx context.Context, p Page) result.Check {
	const sel = `meta[name="description"]`
	start := time.Now()
	c := result.Check{Name: NameMetaDescription, Severity: result.Hard, Selector: sel}

	n, err := p.Count(ctx, sel)
	switch {
	case err != nil:
		c.Status = result.StatusFail
		c.Detail = fmt.Sprintf("count: %v", err)
	case n == 0:
		c.Status = result.StatusFail
		c.Detail = "no meta description"
	default:
		c.Status = result.StatusPass
		c.Detail = fmt.Sprintf("%d tag(s)", n)
	}
	c.DurationMS = time.Since(start).Milliseconds()
	return c
}

// ImageAlts asserts that the first min(count, limit) images carry an alt
// attribute. An empty alt is accepted: it marks a decorative image.
func ImageAlts(ctx context.Context, p Page, limit int) (c result.Check) {
	const sel = "img"
	start := time.Now()
	c = result.Check{Name: NameImageAlt, Severity: result.Hard, Selector: sel}
	defer func() { c.DurationMS = time.Since(start).Milliseconds() }()

	n, err := p.Count(ctx, sel)
	if err != nil {
		c.Status = result.StatusFail
		c.Detail = fmt.Sprintf("count: %v", err)
		return c
	}
	n = min(n, limit)

	for i := 0; i < n; i++ {
		alt, err := p.Attribute(ctx, sel, i, "alt")
		if err != nil {
			c.Status = result.StatusFail
			c.Detail = fmt.Sprintf("image %d: %v", i, err)
			return c
		}
		if alt == nil {
			c.Status = result.StatusFail
			c.Detail = fmt.Sprintf("image %d has no alt attribute", i)
			return c
		}
	}

	c.Status = result.StatusPass
	c.Detail = fmt.Sprintf("%d image(s) checked", n)
	return c
}
