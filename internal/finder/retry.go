package finder

import (
	"context"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
)

// retryPolicy hands out a fixed, shrinking schedule: the wait before a retry is
// the number of retries still left times the base delay (15s, 10s, 5s by default).
type retryPolicy struct {
	remaining int
	base      time.Duration
}

func newRetryPolicy(retries int, base time.Duration) *retryPolicy {
	return &retryPolicy{
		remaining: retries,
		base:      base,
	}
}

// next returns the delay before the next attempt, or false when retries are exhausted.
func (p *retryPolicy) next() (time.Duration, bool) {
	if p.remaining <= 0 {
		return 0, false
	}
	delay := time.Duration(p.remaining) * p.base
	p.remaining--
	return delay, true
}

func (p *retryPolicy) left() int {
	return p.remaining
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
