package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCounter struct {
	counts map[string]int64
	keys   []string
	err    error
}

func (m *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	m.keys = append(m.keys, key)
	return m.counts[key], nil
}

func TestFixedWindow(t *testing.T) {
	c := &memCounter{counts: map[string]int64{}}
	l := New(c, 2, time.Minute)
	base := time.Date(2025, 1, 1, 10, 0, 15, 0, time.UTC)
	l.now = func() time.Time { return base }
	ctx := context.Background()

	d, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, 45*time.Second, d.ResetAfter)

	d, _ = l.Allow(ctx, "u1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, _ = l.Allow(ctx, "u1")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	// Other keys have their own budget.
	d, _ = l.Allow(ctx, "u2")
	assert.True(t, d.Allowed)

	// The next window starts over.
	l.now = func() time.Time { return base.Add(time.Minute) }
	d, _ = l.Allow(ctx, "u1")
	assert.True(t, d.Allowed)
	assert.NotEqual(t, c.keys[0], c.keys[len(c.keys)-1])
	assert.Contains(t, c.keys[0], "ratelimit:u1:")
}

func TestFailsOpen(t *testing.T) {
	l := New(&memCounter{err: errors.New("connection refused")}, 1, time.Second)
	d, err := l.Allow(context.Background(), "ip:1.2.3.4")
	assert.Error(t, err)
	assert.True(t, d.Allowed)

	d, err = New(nil, 1, time.Second).Allow(context.Background(), "x")
	assert.NoError(t, err)
	assert.True(t, d.Allowed)
}
