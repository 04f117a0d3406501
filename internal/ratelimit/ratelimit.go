// Package ratelimit implements a fixed window request limiter shared across
// server instances through a counter store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"compartilar-backend-go/pkg/cache"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// Limiter allows up to limit hits per key in each window.
type Limiter struct {
	counter cache.Counter
	limit   int
	window  time.Duration
	now     func() time.Time
}

// New returns a Limiter. A nil counter allows every request.
func New(counter cache.Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{counter: counter, limit: limit, window: window, now: time.Now}
}

// Allow counts a hit for key. When the counter store fails the request is
// allowed and the error is returned for logging.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	reset := time.Unix(0, (slot+1)*int64(l.window)).Sub(now)
	d := Decision{Allowed: true, Limit: l.limit, Remaining: l.limit, ResetAfter: reset}
	if l.counter == nil {
		return d, nil
	}

	n, err := l.counter.Incr(ctx, fmt.Sprintf("ratelimit:%s:%d", key, slot), l.window)
	if err != nil {
		return d, fmt.Errorf("rate limit counter unavailable: %w", err)
	}
	d.Remaining = l.limit - int(n)
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	d.Allowed = n <= int64(l.limit)
	return d, nil
}
