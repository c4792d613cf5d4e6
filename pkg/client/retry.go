package client

import (
	"context"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rv_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rv_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rv_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryPolicy controls how the executor retries transient failures.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseDelay is the backoff before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff factor.
	Multiplier float64

	// Jitter randomizes each backoff by ±20% to avoid thundering herds.
	Jitter bool

	// RetryableStatusCodes lists HTTP statuses worth retrying.
	RetryableStatusCodes map[int]bool
}

// DefaultRetryPolicy returns the default policy: three retries with
// exponential backoff on 429 and common 5xx statuses.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
		RetryableStatusCodes: map[int]bool{
			429: true,
			500: true,
			502: true,
			503: true,
			504: true,
		},
	}
}

// Retryable reports whether a response status should be retried.
// Network failures (no status) are always retryable.
func (p RetryPolicy) Retryable(statusCode int) bool {
	if statusCode == 0 {
		return true
	}
	return p.RetryableStatusCodes[statusCode]
}

// Backoff returns the delay before retry number attempt (0-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		backoff *= p.Multiplier
	}
	if ceiling := float64(p.MaxDelay); p.MaxDelay > 0 && backoff > ceiling {
		backoff = ceiling
	}
	if p.Jitter {
		backoff *= 0.8 + rand.Float64()*0.4
	}
	return time.Duration(backoff)
}

// sleepBackoff waits for the attempt's backoff, honoring context
// cancellation. The returned error is the context's error, if any.
func sleepBackoff(ctx context.Context, p RetryPolicy, attempt int, class ErrorClass) error {
	delay := p.Backoff(attempt)

	retriesTotal.WithLabelValues(string(class)).Inc()
	retryBackoffSeconds.WithLabelValues(string(class)).Observe(delay.Seconds())

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
