package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "arf"

// swapScript compares hex digests, so the comparison leaks nothing about the
// token itself.
const swapScript = `
local current = redis.call("GET", KEYS[1])
if (not current) or current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var swapLua = redis.NewScript(swapScript)

// RedisStore is a Store backed by Redis. Each key expires with the refresh
// token it describes.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a RedisStore. ttl should equal the refresh token TTL.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{redis: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(principalID string) string {
	return s.prefix + ":" + principalID
}

// Rotate stores the hash of token with the refresh TTL.
func (s *RedisStore) Rotate(ctx context.Context, principalID, token string) error {
	if err := s.redis.Set(ctx, s.key(principalID), HashToken(token), s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Validate reports whether presented matches the stored hash. A missing
// key is a mismatch, not an error.
func (s *RedisStore) Validate(ctx context.Context, principalID, presented string) (bool, error) {
	stored, err := s.redis.Get(ctx, s.key(principalID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return matches(stored, presented), nil
}

// Swap replaces the hash atomically through a Lua compare-and-set.
func (s *RedisStore) Swap(ctx context.Context, principalID, presented, next string) (bool, error) {
	if presented == "" {
		return false, nil
	}
	swapped, err := swapLua.Run(
		ctx,
		s.redis,
		[]string{s.key(principalID)},
		HashToken(presented),
		HashToken(next),
		s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return swapped == 1, nil
}

// Revoke deletes the principal's key.
func (s *RedisStore) Revoke(ctx context.Context, principalID string) error {
	if err := s.redis.Del(ctx, s.key(principalID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
