// Package excerpt turns the hero element's HTML into a short markdown
// excerpt for reports. Page HTML is untrusted: it is sanitised before
// conversion so reports rendered elsewhere cannot carry scripts.
package excerpt

import (
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxRunes caps an excerpt.
const DefaultMaxRunes = 280

// Builder converts HTML fragments to sanitised markdown.
type Builder struct {
	policy   *bluemonday.Policy
	conv     *converter.Converter
	maxRunes int
}

// New creates a Builder. maxRunes <= 0 uses DefaultMaxRunes.
func New(maxRunes int) *Builder {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	return &Builder{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		maxRunes: maxRunes,
	}
}

// Build returns the markdown excerpt of fragment, resolving relative links
// against pageURL. It returns "" when nothing readable remains.
func (b *Builder) Build(fragment, pageURL string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	clean := b.policy.Sanitize(fragment)

	md, err := b.conv.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil {
		return ""
	}
	return truncate(strings.TrimSpace(md), b.maxRunes)
}

// truncate cuts s to at most n runes, ending with an ellipsis when cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n-1])) + "…"
}
