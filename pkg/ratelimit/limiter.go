// Package ratelimit gates outbound provider calls behind a shared token
// bucket. Every request attempt, including retries, must acquire a token
// before it reaches the network.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit gating.
var (
	rateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rv_rate_limit_waits_total",
		Help: "Total number of requests that waited for a token",
	})

	rateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rv_rate_limit_rejections_total",
		Help: "Total number of requests rejected because the bucket stayed empty",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rv_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limit token",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
)

// ErrRateLimited is returned in fail-fast mode when no token becomes
// available within the configured wait bound.
var ErrRateLimited = errors.New("rate limit exceeded")

// Config holds token bucket parameters. Whether an empty bucket blocks the
// caller or fails fast is an explicit policy choice, not a hidden default.
type Config struct {
	// Rate is the steady-state refill rate in tokens per second.
	Rate float64

	// Burst is the bucket size.
	Burst int

	// FailFast bounds the wait for a token by MaxWait and then returns
	// ErrRateLimited. When false, Acquire blocks until a token arrives or
	// the caller's context is done.
	FailFast bool

	// MaxWait is the bound applied in fail-fast mode.
	MaxWait time.Duration
}

// DefaultConfig returns a conservative default bucket.
func DefaultConfig() Config {
	return Config{
		Rate:     5,
		Burst:    10,
		FailFast: false,
		MaxWait:  2 * time.Second,
	}
}

// Limiter is a process-wide token bucket shared by all concurrent callers.
// Token accounting is handled by rate.Limiter, which is safe for concurrent
// use.
type Limiter struct {
	bucket *rate.Limiter
	config Config
	logger zerolog.Logger
}

// New creates a limiter. Non-positive rate or burst fall back to defaults.
func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Rate <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = def.MaxWait
	}

	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		config: cfg,
		logger: log.With().Str("component", "ratelimit").Logger(),
	}
}

// Acquire consumes one token, waiting according to the configured policy.
// A context cancellation surfaces as the context's error so callers can
// distinguish their own deadline from a rate limit rejection.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.bucket.Allow() {
		return nil
	}

	rateLimitWaits.Inc()
	start := time.Now()
	defer func() {
		rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	if l.config.FailFast {
		waitCtx, cancel := context.WithTimeout(ctx, l.config.MaxWait)
		defer cancel()

		if err := l.bucket.Wait(waitCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rateLimitRejections.Inc()
			l.logger.Warn().
				Dur("max_wait", l.config.MaxWait).
				Msg("Token bucket empty, rejecting request")
			return fmt.Errorf("%w: no token within %v", ErrRateLimited, l.config.MaxWait)
		}
		return nil
	}

	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}
	return nil
}

// Tokens returns the number of tokens currently available, for tests and
// diagnostics.
func (l *Limiter) Tokens() float64 {
	return l.bucket.Tokens()
}
