package fetcher

import (
	"bytes"
	"strings"
)

// IsScriptShell reports whether the HTML looks like an empty client-side
// app shell: little visible text relative to markup, or a known empty
// mount point. Such pages render their nav and hero only after scripts
// run, which is worth knowing when a visibility check times out.
func IsScriptShell(html []byte) bool {
	lower := bytes.ToLower(html)
	shellMarkers := []string{
		"<div id=\"root\"></div>",
		"<div id=\"app\"></div>",
		"<div id=\"__next\"></div>",
		"<noscript>you need to enable javascript",
		"<noscript>enable javascript",
	}
	for _, m := range shellMarkers {
		if bytes.Contains(lower, []byte(m)) {
			return true
		}
	}

	if len(html) < 256 {
		return true
	}

	textLen, markupLen := textMarkupRatio(html)
	total := textLen + markupLen
	if total == 0 {
		return true
	}

	// Under 10% text or under 200 visible chars.
	return float64(textLen)/float64(total) < 0.10 || textLen < 200
}

// textMarkupRatio computes the approximate byte count of text vs markup.
// Script and style bodies count as markup.
func textMarkupRatio(html []byte) (text, markup int) {
	inTag := false
	s := string(html)
	i := 0
	for i < len(s) {
		ch := s[i]
		if ch == '<' {
			rest := strings.ToLower(s[i:min(len(s), i+8)])
			if closer := rawCloser(rest); closer != "" {
				idx := strings.Index(strings.ToLower(s[i:]), closer)
				if idx == -1 {
					markup += len(s) - i
					break
				}
				end := strings.IndexByte(s[i+idx:], '>')
				if end < 0 {
					markup += len(s) - i
					break
				}
				markup += idx + end + 1
				i += idx + end + 1
				continue
			}
			inTag = true
			markup++
			i++
			continue
		}
		if ch == '>' {
			inTag = false
			markup++
			i++
			continue
		}
		if inTag {
			markup++
		} else if ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' {
			text++
		}
		i++
	}
	return text, markup
}

func rawCloser(prefix string) string {
	switch {
	case strings.HasPrefix(prefix, "<script"):
		return "</script"
	case strings.HasPrefix(prefix, "<style"):
		return "</style"
	}
	return ""
}
