// Package limiters throttles requests that trigger outbound messages
// (password reset and email verification links).
//
// A [RequestLimiter] counts per identifier and, optionally, per client IP.
// Counting is delegated to a [Counter]: [RedisCounter] uses a fixed window
// shared across instances; [LocalCounter] uses in-process token buckets.
//
// A nil *RequestLimiter allows everything.
//
// Limiters only count. Callers decide what a rejection means.
package limiters
