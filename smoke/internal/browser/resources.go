package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blocker fails requests whose CDP resource type is in its set. It owns a
// hijack router bound to one tab; stop must be called when the tab goes
// away or the router's event loop outlives it.
type blocker struct {
	router *rod.HijackRouter
	types  map[string]bool
}

// resourceTypes normalises config names ("fonts", "Media", "images") to
// lower-case CDP resource types ("font", "media", "image"). No CDP type
// ends in "s", so the plural is simply trimmed.
func resourceTypes(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		set[strings.TrimSuffix(n, "s")] = true
	}
	return set
}

func (b *blocker) blocks(t proto.NetworkResourceType) bool {
	return b.types[strings.ToLower(string(t))]
}

// startBlocker installs the hijack router on page and starts serving it.
func startBlocker(page *rod.Page, names []string) (*blocker, error) {
	b := &blocker{types: resourceTypes(names)}
	if len(b.types) == 0 {
		return nil, nil
	}

	b.router = page.HijackRequests()
	err := b.router.Add("*", "", func(h *rod.Hijack) {
		if b.blocks(h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		b.stop()
		return nil, err
	}

	go b.router.Run()
	return b, nil
}

// stop cancels the router's event loop. Safe on a nil or stopped blocker.
func (b *blocker) stop() {
	if b == nil || b.router == nil {
		return
	}
	// Fetch.disable fails once the target is gone; the event loop is
	// cancelled either way.
	_ = b.router.Stop()
	b.router = nil
}
