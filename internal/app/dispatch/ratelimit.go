package dispatch

import (
	"context"
	"time"
)

// rateLimiter enforces a minimum interval between consecutive
// successful sends on one session. The baseline resets at session
// start, so the first send of a fresh session never waits.
type rateLimiter struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

func newRateLimiter(ratePerMinute int, now func() time.Time, sleep func(context.Context, time.Duration) error) *rateLimiter {
	return &rateLimiter{
		interval: time.Minute / time.Duration(ratePerMinute),
		now:      now,
		sleep:    sleep,
	}
}

// reset clears the pacing baseline for a new session.
func (l *rateLimiter) reset() {
	l.last = time.Time{}
}

// wait blocks until at least the configured interval has elapsed since
// the previous successful send, or until the context is cancelled.
func (l *rateLimiter) wait(ctx context.Context) error {
	if l.last.IsZero() {
		return nil
	}

	elapsed := l.now().Sub(l.last)
	if remaining := l.interval - elapsed; remaining > 0 {
		return l.sleep(ctx, remaining)
	}
	return nil
}

// mark records a successful send as the new pacing baseline.
func (l *rateLimiter) mark() {
	l.last = l.now()
}

// sleepContext sleeps for the given duration, waking early with the
// context's error on cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
