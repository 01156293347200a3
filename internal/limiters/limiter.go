package limiters

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// Counter records one hit against key and reports whether it is within budget.
type Counter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RequestLimiter applies a Counter to an identifier and an optional IP.
type RequestLimiter struct {
	counter    Counter
	prefix     string
	ipThrottle bool
}

// NewRequestLimiter returns a limiter whose keys are namespaced by prefix.
func NewRequestLimiter(counter Counter, prefix string, ipThrottle bool) *RequestLimiter {
	return &RequestLimiter{counter: counter, prefix: prefix, ipThrottle: ipThrottle}
}

// CheckRequest counts one request for identifier (and ip when IP throttling
// is on). It returns ErrRateLimited when either budget is exhausted.
func (l *RequestLimiter) CheckRequest(ctx context.Context, identifier, ip string) error {
	if l == nil || l.counter == nil {
		return nil
	}

	if err := l.check(ctx, l.prefix+":id:"+strings.ToLower(identifier)); err != nil {
		return err
	}
	if l.ipThrottle && ip != "" {
		if err := l.check(ctx, l.prefix+":ip:"+ip); err != nil {
			return err
		}
	}
	return nil
}

func (l *RequestLimiter) check(ctx context.Context, key string) error {
	ok, err := l.counter.Allow(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}
