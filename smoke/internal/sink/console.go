package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// Console writes human-readable lines: ✅ for passes, ⚠️ for soft
// warnings, ❌ for failures.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console sink. If w is nil, os.Stdout is used.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

func (c *Console) SendCheck(_ context.Context, _ string, chk result.Check) error {
	var line string
	switch chk.Status {
	case result.StatusPass:
		line = fmt.Sprintf("✅ %s: %s", chk.Name, chk.Detail)
	case result.StatusWarn:
		line = fmt.Sprintf("⚠️ Warning: %s", chk.Detail)
	case result.StatusSkip:
		line = fmt.Sprintf("⏭️ %s skipped: %s", chk.Name, chk.Detail)
	default:
		line = fmt.Sprintf("❌ %s: %s", chk.Name, chk.Detail)
	}
	return c.println(line)
}

func (c *Console) SendReport(_ context.Context, r *result.Report) error {
	if r.Screenshot != "" {
		if err := c.println("📸 Screenshot saved to " + r.Screenshot); err != nil {
			return err
		}
	}
	if r.Passed {
		return c.println(fmt.Sprintf("✅ %s smoke test completed successfully", r.URL))
	}
	return c.println(fmt.Sprintf("❌ %s smoke test failed: %s", r.URL, r.Error))
}

func (c *Console) Close() error { return nil }

func (c *Console) println(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, s)
	return err
}
