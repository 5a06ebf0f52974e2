package notification

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucketRateLimiter allows bursts of up to capacity notifications and
// then one more per refill interval
type TokenBucketRateLimiter struct {
	capacity   int
	refillRate time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewTokenBucketRateLimiter creates a new token bucket rate limiter
func NewTokenBucketRateLimiter(capacity int, refillRate time.Duration) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		capacity:   capacity,
		refillRate: refillRate,
		limiter:    newLimiter(capacity, refillRate),
	}
}

// NewWindowRateLimiter allows at most maxMessages per window on average.
// It returns nil when maxMessages is zero, meaning no limit.
func NewWindowRateLimiter(maxMessages int, window time.Duration) *TokenBucketRateLimiter {
	if maxMessages <= 0 {
		return nil
	}
	return NewTokenBucketRateLimiter(maxMessages, window/time.Duration(maxMessages))
}

func newLimiter(capacity int, refillRate time.Duration) *rate.Limiter {
	if capacity <= 0 {
		return rate.NewLimiter(0, 0)
	}
	return rate.NewLimiter(rate.Every(refillRate), capacity)
}

// Allow checks if a notification is allowed under the rate limit
func (tb *TokenBucketRateLimiter) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limiter.Allow()
}

// Reset resets the rate limiter to full capacity
func (tb *TokenBucketRateLimiter) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.limiter = newLimiter(tb.capacity, tb.refillRate)
}
