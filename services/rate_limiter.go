package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"support-router/logger"
)

// RateLimiter is a sliding one-minute window limiter for AI calls.
// A non-positive rpm disables limiting.
type RateLimiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	window            time.Duration
	lastRequests      []time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rpm int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: rpm,
		window:            time.Minute,
		lastRequests:      make([]time.Time, 0, max(rpm, 0)),
	}
}

// Wait blocks until a request can be made within rate limits or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.requestsPerMinute <= 0 {
		return nil
	}

	for {
		wait := r.reserve(time.Now())
		if wait <= 0 {
			return nil
		}

		logger.FromContext(ctx).Info("AI rate limit reached, waiting",
			zap.Duration("wait", wait),
			zap.Int("rpm", r.requestsPerMinute))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// reserve records a request at now if the window has room, otherwise it
// returns how long to wait before trying again.
func (r *RateLimiter) reserve(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	windowStart := now.Add(-r.window)
	valid := r.lastRequests[:0]
	for _, t := range r.lastRequests {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	r.lastRequests = valid

	if len(r.lastRequests) >= r.requestsPerMinute {
		return r.lastRequests[0].Add(r.window).Sub(now)
	}

	r.lastRequests = append(r.lastRequests, now)
	return 0
}
