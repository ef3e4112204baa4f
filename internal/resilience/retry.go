package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds the attempts made for one external call. The zero value
// means one attempt with no timeout; use [DefaultRetryPolicy] for the
// pipeline default (one retry after a short backoff, each attempt bounded).
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first. Values
	// below 1 are treated as 1.
	Attempts int

	// PerCallTimeout bounds each individual attempt. Zero disables the
	// deadline.
	PerCallTimeout time.Duration

	// Backoff is the pause between attempts. Zero means retry immediately.
	Backoff time.Duration
}

// DefaultRetryPolicy is the pipeline's standard synthesis policy: two
// attempts, 30s per attempt, 500ms between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 2, PerCallTimeout: 30 * time.Second, Backoff: 500 * time.Millisecond}
}

// Do runs fn under the policy, passing each attempt a context bounded by
// PerCallTimeout. It returns nil on the first success, the last error once
// attempts are exhausted, and stops early when ctx itself is done or fn
// fails with [ErrCircuitOpen] (another attempt cannot succeed while the
// breaker is open).
func (p RetryPolicy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if p.PerCallTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.PerCallTimeout)
		}
		lastErr = fn(attemptCtx)
		cancel()

		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrCircuitOpen) || ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			slog.Warn("retrying after failure",
				"call", name, "attempt", attempt, "err", lastErr)
			select {
			case <-time.After(p.Backoff):
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", name, ctx.Err())
			}
		}
	}
	return fmt.Errorf("%s: %w", name, lastErr)
}
