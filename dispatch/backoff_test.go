package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicyDelayDoubles(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}

	require.Equal(t, 100*time.Millisecond, p.delayFor(0))
	require.Equal(t, 200*time.Millisecond, p.delayFor(1))
	require.Equal(t, 400*time.Millisecond, p.delayFor(2))
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		MaxDelay:    2 * time.Second,
	}

	require.Equal(t, 2*time.Second, p.delayFor(5))
	// Overflowing shifts also land on the cap.
	require.Equal(t, 2*time.Second, p.delayFor(62))
}

func TestRetryPolicyJitterBounds(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Jitter:      0.25,
	}

	for range 100 {
		d := p.delayFor(0)
		require.GreaterOrEqual(t, d, 75*time.Millisecond)
		require.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestSleepRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, sleep(context.Background(), 0))
}
