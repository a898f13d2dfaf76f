package oquapi

import (
	"context"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER - Token Bucket implementation
// Keeps the engine well under the Oqu platform quota even when the sync
// scheduler fans out over every ledger at once.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiterConfig contains configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the maximum sustained request rate.
	RequestsPerSecond float64

	// BurstSize is the maximum number of requests in a burst.
	BurstSize int

	// WaitTimeout is the maximum time to wait for a token.
	WaitTimeout time.Duration
}

// DefaultRateLimiterConfig returns conservative defaults for the Oqu API.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 5.0,
		BurstSize:         10,
		WaitTimeout:       30 * time.Second,
	}
}

// RateLimiter implements the token bucket algorithm.
type RateLimiter struct {
	mu          sync.Mutex
	maxTokens   float64
	refillRate  float64
	tokens      float64
	lastRefill  time.Time
	waitTimeout time.Duration
}

// NewRateLimiter creates a new RateLimiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		maxTokens:   float64(config.BurstSize),
		refillRate:  config.RequestsPerSecond,
		tokens:      float64(config.BurstSize),
		lastRefill:  time.Now(),
		waitTimeout: config.WaitTimeout,
	}
}

// Wait blocks until a token is available, the wait timeout expires, or
// the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	deadline := time.Now().Add(rl.waitTimeout)

	for {
		wait, ok := rl.tryAcquire()
		if ok {
			return nil
		}
		if time.Now().Add(wait).After(deadline) {
			return errRateLimiterTimeout
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire attempts to take a token without blocking.
func (rl *RateLimiter) TryAcquire() bool {
	_, ok := rl.tryAcquire()
	return ok
}

func (rl *RateLimiter) tryAcquire() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= 1.0 {
		rl.tokens--
		return 0, true
	}

	needed := 1.0 - rl.tokens
	return time.Duration(needed / rl.refillRate * float64(time.Second)), false
}

func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.lastRefill = now

	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
}
