package lessonsai

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig tunes the client-side throttle.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64

	// BurstSize is how many requests may fire back to back.
	BurstSize int

	// MinInterval spaces out requests even while burst tokens remain.
	MinInterval time.Duration

	// WaitTimeout bounds how long Allow blocks for a token.
	WaitTimeout time.Duration

	// RetryAfter is the assumed cooldown when the API rate-limits us
	// without saying for how long.
	RetryAfter time.Duration
}

// DefaultRateLimiterConfig returns conservative defaults for the
// generator API.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 2.0,
		BurstSize:         5,
		MinInterval:       200 * time.Millisecond,
		WaitTimeout:       10 * time.Second,
		RetryAfter:        60 * time.Second,
	}
}

// RateLimitError reports a request rejected by the throttle or by the
// API itself.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func (e *RateLimitError) Is(target error) bool {
	_, ok := target.(*RateLimitError)
	return ok
}

// RateLimiter is a token bucket guarding the generator API. Question
// generation is expensive on the provider side, so the client keeps
// itself well under the contractual quota. When the API rate-limits us
// anyway, the bucket drains and the refill rate backs off.
type RateLimiter struct {
	mu          sync.Mutex
	tokens      float64
	capacity    float64
	refillRate  float64 // tokens per second
	refilledAt  time.Time
	requestedAt time.Time
	minInterval time.Duration
	waitTimeout time.Duration
}

// NewRateLimiter builds a limiter starting with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		tokens:      float64(config.BurstSize),
		capacity:    float64(config.BurstSize),
		refillRate:  config.RequestsPerSecond,
		refilledAt:  now,
		requestedAt: now.Add(-config.MinInterval),
		minInterval: config.MinInterval,
		waitTimeout: config.WaitTimeout,
	}
}

// Allow blocks until a token is available, the context is cancelled or
// the wait timeout passes.
func (rl *RateLimiter) Allow(ctx context.Context) error {
	deadline := time.Now().Add(rl.waitTimeout)

	for {
		wait, ok := rl.take()
		if ok {
			return nil
		}
		if time.Now().Add(wait).After(deadline) {
			return &RateLimitError{
				RetryAfter: wait,
				Message:    "rate limit exceeded, retry after " + wait.String(),
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// TryAllow takes a token without blocking.
func (rl *RateLimiter) TryAllow() bool {
	_, ok := rl.take()
	return ok
}

// take consumes one token. On failure it returns how long to wait
// before the next attempt.
func (rl *RateLimiter) take() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if since := time.Since(rl.requestedAt); since < rl.minInterval {
		return rl.minInterval - since, false
	}
	if rl.tokens < 1.0 {
		missing := 1.0 - rl.tokens
		return time.Duration(missing / rl.refillRate * float64(time.Second)), false
	}

	rl.tokens--
	rl.requestedAt = time.Now()
	return 0, true
}

// refill credits tokens for the time elapsed. Caller holds the lock.
func (rl *RateLimiter) refill() {
	now := time.Now()
	if elapsed := now.Sub(rl.refilledAt).Seconds(); elapsed > 0 {
		rl.tokens += elapsed * rl.refillRate
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.refilledAt = now
	}
}

// RecordRateLimitHit reacts to a 429 from the API: the bucket drains
// and the refill rate drops by a fifth.
func (rl *RateLimiter) RecordRateLimitHit(retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = 0
	rl.refillRate *= 0.8
	rl.requestedAt = time.Now()
}

// Reset restores the full bucket and clears request spacing.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = rl.capacity
	rl.refilledAt = time.Now()
	rl.requestedAt = time.Now().Add(-rl.minInterval)
}

// RateLimiterStatus is a snapshot for the client's status endpoint.
type RateLimiterStatus struct {
	AvailableTokens float64
	MaxTokens       float64
	RefillRate      float64
	LastRequest     time.Time
}

// Status reports the limiter state after crediting pending refills.
func (rl *RateLimiter) Status() RateLimiterStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()

	return RateLimiterStatus{
		AvailableTokens: rl.tokens,
		MaxTokens:       rl.capacity,
		RefillRate:      rl.refillRate,
		LastRequest:     rl.requestedAt,
	}
}
