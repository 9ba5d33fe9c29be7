package dispatch

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds the automatic retry behaviour for transient
// failures. Only the storage-locked signature and network-level
// timeouts/resets are retried; the policy exists to keep the total wait
// on the order of a few seconds so the UI layer stays responsive.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry; it doubles per
	// attempt up to MaxDelay.
	BaseDelay time.Duration
	// MaxDelay caps the per-retry delay.
	MaxDelay time.Duration
	// Jitter randomises each delay by ±Jitter (0..1).
	Jitter float64
}

// DefaultRetryPolicy is a conservative bounded policy: worst case
// roughly 250ms + 500ms + 1s ≈ 1.75s of waiting across 4 attempts.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 4,
	BaseDelay:   250 * time.Millisecond,
	MaxDelay:    2 * time.Second,
	Jitter:      0.25,
}

// delayFor returns the backoff delay after the given 0-indexed attempt.
func (p RetryPolicy) delayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.BaseDelay << uint(attempt)
	if delay <= 0 || delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 {
		jitter := min(p.Jitter, 1)
		factor := 1 + (rand.Float64()*2-1)*jitter
		delay = time.Duration(float64(delay) * factor)
	}
	return delay
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
