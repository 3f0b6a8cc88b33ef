package ratelimit

import (
	"context"
	"time"
)

const maxRetryShift = 10

// RetryDelay is the exponential backoff delay before retry number attempt,
// counting from 0: 1s, 2s, 4s, and so on.
func RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxRetryShift {
		attempt = maxRetryShift
	}
	return time.Duration(1<<attempt) * time.Second
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoSleep returns immediately unless ctx is already done.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
