package limiters

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter is a fixed-window Counter: the first hit in a window sets
// the key's expiry and every hit increments it.
type RedisCounter struct {
	redis  redis.UniversalClient
	max    int
	window time.Duration
}

// NewRedisCounter returns a fixed-window counter allowing max hits per
// window, shared by every instance using the same Redis.
func NewRedisCounter(client redis.UniversalClient, max int, window time.Duration) *RedisCounter {
	return &RedisCounter{redis: client, max: max, window: window}
}

func (c *RedisCounter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count == 1 {
		if err := c.redis.Expire(ctx, key, c.window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count <= int64(c.max), nil
}
