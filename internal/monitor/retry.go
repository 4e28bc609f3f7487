package monitor

import (
	"context"
	"fmt"
	"time"
)

// withRetry invokes fn once and, on failure, retries up to retries more
// times, waiting baseDelay before the first retry and doubling the wait
// before each subsequent one. It honors context cancellation while waiting.
// The last error is returned when the whole budget is exhausted.
func withRetry(ctx context.Context, retries int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := baseDelay
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("after %d attempts: %w", retries+1, lastErr)
}
