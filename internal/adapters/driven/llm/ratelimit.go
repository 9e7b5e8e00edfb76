package llm

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRateLimitBackoff is the pause after a provider reports a rate limit.
const DefaultRateLimitBackoff = 30 * time.Second

// RateLimiter paces LLM requests with a token bucket and an optional
// backoff window set after a provider rejects a request.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter allows requestsPerSecond sustained requests with the given burst.
// A non-positive rate disables pacing.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimitError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	// First, check for backoff from previous rate limit errors
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	// Then wait for the token bucket
	return r.limiter.Wait(ctx)
}

// RecordRateLimitError pauses all requests for d (DefaultRateLimitBackoff if d <= 0).
func (r *RateLimiter) RecordRateLimitError(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d <= 0 {
		d = DefaultRateLimitBackoff
	}
	r.retryAt = time.Now().Add(d)
}
