package check

import (
	"context"
	"fmt"
	"time"
)

// DefaultPollInterval is used when WaitVisible gets a non-positive interval.
const DefaultPollInterval = 100 * time.Millisecond

// WaitVisible polls until the first match of selector is visible, the
// timeout elapses, or ctx is done. It returns nil once visible. A page
// error does not stop the polling; the last one is reported on timeout.
func WaitVisible(ctx context.Context, p Page, selector string, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := p.Visible(waitCtx, selector)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-waitCtx.Done():
			if lastErr != nil {
				return fmt.Errorf("%s not visible after %s: %w", selector, timeout, lastErr)
			}
			return fmt.Errorf("%s not visible after %s", selector, timeout)
		case <-ticker.C:
		}
	}
}
