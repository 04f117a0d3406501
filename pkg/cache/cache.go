package cache

import (
	"context"
	"time"
)

// Counter increments per-key counters that expire on their own.
type Counter interface {
	// Incr adds one to key and (re)sets its expiry to ttl, returning the new count.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
