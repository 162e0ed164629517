package client

import (
	"context"

	"github.com/jathurchan/proknow/logger"
	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for client-side request rate limiting.
type RateLimiter interface {
	Allow() bool
	Wait(ctx context.Context) error
}

// TokenBucketRateLimiter implements rate limiting using a token bucket algorithm.
type TokenBucketRateLimiter struct {
	limiter *rate.Limiter
	logger  logger.Logger
}

// NewTokenBucketRateLimiter creates a limiter allowing requestsPerSecond with
// the given burst. A non-positive rate disables limiting.
func NewTokenBucketRateLimiter(requestsPerSecond float64, burst int, log logger.Logger) *TokenBucketRateLimiter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	rps := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		rps = rate.Inf
		log.Debugw("Client rate limit disabled", "rate", requestsPerSecond)
	}
	if burst <= 0 {
		burst = 1
		if rps != rate.Inf {
			log.Warnw("Rate limit burst is zero or negative, setting to 1.", "burst", burst)
		}
	}

	return &TokenBucketRateLimiter{
		limiter: rate.NewLimiter(rps, burst),
		logger:  log,
	}
}

// Allow returns true if a request can proceed immediately.
func (rl *TokenBucketRateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Wait blocks until a request can proceed or the context is cancelled.
func (rl *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}
