// Package metrics provides the centralized Prometheus metrics registry for
// the research verification client. All metrics are defined in their
// respective packages (cache, ratelimit, client, verify) to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - rv_cache_hits_total{state} (Counter): Cache hits by freshness state (fresh, stale)
//   - rv_cache_misses_total (Counter): Cache misses (absent or expired entries)
//   - rv_cache_evictions_total (Counter): Expired entries evicted
//   - rv_cache_entries (Gauge): Current number of live entries
//   - rv_cache_persist_errors_total{operation} (Counter): Persistence errors (save, load)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - rv_rate_limit_waits_total (Counter): Requests that waited for a token
//   - rv_rate_limit_rejections_total (Counter): Requests rejected in fail-fast mode
//   - rv_rate_limit_wait_seconds (Histogram): Time spent waiting for a token
//
// Request Metrics (pkg/client):
//   - rv_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - rv_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - rv_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, circuit)
//   - rv_stale_served_total (Counter): Stale cache entries served while revalidating
//   - rv_refreshes_total{outcome} (Counter): Background refresh attempts by outcome
//
// Retry and Circuit Metrics (pkg/client):
//   - rv_retries_total{error_class} (Counter): Retry attempts by error class
//   - rv_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - rv_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//   - rv_circuit_transitions_total{endpoint, to} (Counter): Breaker transitions by new state
//
// Verification Metrics (pkg/verify):
//   - rv_verifications_total{outcome} (Counter): Runs by outcome (success, validation_error, upstream_error, processing_error)
//   - rv_verification_score (Histogram): Cross-source confidence score distribution
//   - rv_verification_duration_seconds (Histogram): End-to-end run duration
//   - rv_verification_queries_total{status} (Counter): Research queries by final status
//   - rv_conflicts_detected_total (Counter): Conflicting claim pairs detected
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(rv_cache_hits_total[5m])) /
//   (sum(rate(rv_cache_hits_total[5m])) + sum(rate(rv_cache_misses_total[5m])))
//
//   # Verification Failure Rate
//   sum(rate(rv_verifications_total{outcome!="success"}[5m])) /
//   sum(rate(rv_verifications_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(rv_request_duration_seconds_bucket[5m]))
//
//   # Median Confidence Score
//   histogram_quantile(0.5, rate(rv_verification_score_bucket[5m]))
//
//   # Circuit Breaker Openings
//   rate(rv_circuit_transitions_total{to="open"}[5m])
