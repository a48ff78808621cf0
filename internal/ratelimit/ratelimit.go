// Package ratelimit implements sliding-window admission control.
//
// Two backends share the Limiter contract: SlidingWindow keeps a per-key log of
// admission timestamps in process memory, RedisLimiter keeps the same log in a
// Redis sorted set so several API instances share one quota. Rejected attempts
// are never recorded, so a client that keeps hammering a full window does not
// push its own reset time further out.
package ratelimit

import (
	"context"
	"time"
)

// Limiter admits or rejects one attempt for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the oldest counted attempt leaves the window.
	ResetAt time.Time
	// RetryAfter is zero when Allowed.
	RetryAfter time.Duration
}

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// Func adapts an ordinary function to the Limiter interface.
type Func func(ctx context.Context, key string) (Result, error)

func (f Func) Allow(ctx context.Context, key string) (Result, error) { return f(ctx, key) }

// Unlimited admits everything. Used when rate limiting is disabled.
var Unlimited Limiter = Func(func(context.Context, string) (Result, error) {
	return Result{Allowed: true, Limit: -1, Remaining: -1}, nil
})
