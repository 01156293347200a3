package limiters

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const localMaxKeys = 10_000

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalCounter is an in-process Counter with one token bucket per key. The
// bucket holds max tokens and refills one every window/max.
type LocalCounter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	window  time.Duration
	now     func() time.Time
}

// NewLocalCounter returns an in-process counter allowing max hits per
// window per key.
func NewLocalCounter(max int, window time.Duration) *LocalCounter {
	if max < 1 {
		max = 1
	}
	return &LocalCounter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(window / time.Duration(max)),
		burst:   max,
		window:  window,
		now:     time.Now,
	}
}

func (c *LocalCounter) Allow(_ context.Context, key string) (bool, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[key]
	if !ok {
		if len(c.buckets) >= localMaxKeys {
			c.pruneLocked(now)
		}
		b = &bucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

// pruneLocked drops buckets idle for a full window; such a bucket is full
// again, so dropping it changes nothing.
func (c *LocalCounter) pruneLocked(now time.Time) {
	for key, b := range c.buckets {
		if now.Sub(b.lastSeen) >= c.window {
			delete(c.buckets, key)
		}
	}
}
