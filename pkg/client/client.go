// Package client provides the resilient request executor that fronts the
// external research provider: semantic-fingerprint caching with
// stale-while-revalidate, token bucket rate limiting, retry with exponential
// backoff, and per-endpoint circuit breaking.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/veritylabs/research-client/pkg/cache"
	"github.com/veritylabs/research-client/pkg/ratelimit"
)

// Prometheus metrics for executor operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rv_requests_total",
		Help: "Total provider requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rv_request_duration_seconds",
		Help:    "Provider request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rv_errors_total",
		Help: "Total terminal request errors by class",
	}, []string{"class"})

	staleServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rv_stale_served_total",
		Help: "Total requests answered from a stale cache entry",
	})

	refreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rv_refreshes_total",
		Help: "Total background cache refreshes by result",
	}, []string{"result"})
)

// Config holds the executor configuration.
type Config struct {
	// HTTPTimeout bounds a single network attempt.
	HTTPTimeout time.Duration

	// CacheTTL and CacheStaleAfter control how responses are cached.
	CacheTTL        time.Duration
	CacheStaleAfter time.Duration

	// RefreshTimeout bounds a background stale-while-revalidate refresh.
	RefreshTimeout time.Duration

	// Retry is the retry/backoff policy applied to transient failures.
	Retry RetryPolicy

	// Circuit configures the per-endpoint breakers.
	Circuit BreakerConfig

	// UserAgent is sent on every outbound request.
	UserAgent string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:     30 * time.Second,
		CacheTTL:        15 * time.Minute,
		CacheStaleAfter: 5 * time.Minute,
		RefreshTimeout:  45 * time.Second,
		Retry:           DefaultRetryPolicy(),
		Circuit:         DefaultBreakerConfig(),
		UserAgent:       "research-client/0.1.0",
	}
}

// Request describes one outbound provider call. Query and Params feed the
// cache fingerprint; Method, URL, Header and Body describe the wire call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	// Query is the semantic query text behind this request. When empty,
	// the URL stands in for it in the fingerprint.
	Query string

	// Params are the normalized request parameters.
	Params map[string]string
}

// Fingerprint returns the cache key for this request.
func (r Request) Fingerprint() string {
	query := r.Query
	if query == "" {
		query = r.URL
	}
	return cache.Fingerprint(query, r.Params)
}

// Response is the provider's answer, fully read into memory.
type Response struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"-"`
	Body       []byte      `json:"body"`

	// FromCache reports whether the response was served without a
	// network call.
	FromCache bool `json:"-"`
}

// Executor issues outbound calls applying cache, rate limit, retry, and
// circuit policy. It is an explicitly constructed component: the cache
// store and limiter are injected, never global.
type Executor struct {
	httpClient *http.Client
	cache      *cache.Store
	limiter    *ratelimit.Limiter
	config     Config
	logger     zerolog.Logger

	mu         sync.Mutex
	breakers   map[string]*Breaker
	refreshing map[string]struct{}
}

// New creates an executor.
func New(store *cache.Store, limiter *ratelimit.Limiter, cfg Config) (*Executor, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultConfig().HTTPTimeout
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}
	if len(cfg.Retry.RetryableStatusCodes) == 0 {
		cfg.Retry.RetryableStatusCodes = DefaultRetryPolicy().RetryableStatusCodes
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultConfig().RefreshTimeout
	}

	return &Executor{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		cache:      store,
		limiter:    limiter,
		config:     cfg,
		logger:     log.With().Str("component", "executor").Logger(),
		breakers:   make(map[string]*Breaker),
		refreshing: make(map[string]struct{}),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (e *Executor) SetHTTPClient(client *http.Client) {
	e.httpClient = client
}

// Breaker returns the circuit breaker for an endpoint, creating it on first
// use. Breakers are process-wide, keyed by endpoint identity.
func (e *Executor) Breaker(endpoint string) *Breaker {
	e.mu.Lock()
	defer e.mu.Unlock()

	br, ok := e.breakers[endpoint]
	if !ok {
		br = newBreaker(endpoint, e.config.Circuit)
		e.breakers[endpoint] = br
	}
	return br
}

// Execute performs a request. A fresh cache hit returns without a network
// call; a stale hit returns immediately and triggers one background
// refresh; a miss blocks until a fresh value is obtained or the retry and
// circuit policy is exhausted.
func (e *Executor) Execute(ctx context.Context, req Request) (*Response, error) {
	endpoint := endpointOf(req.URL)
	fp := req.Fingerprint()

	if value, state := e.cache.Get(fp); state != cache.StateMiss {
		resp, err := decodeCached(value)
		if err == nil {
			resp.FromCache = true
			requestsTotal.WithLabelValues(endpoint, "cache_"+state.String()).Inc()

			if state == cache.StateStale {
				staleServedTotal.Inc()
				e.scheduleRefresh(fp, req, endpoint)
			}

			e.logger.Debug().
				Str("endpoint", endpoint).
				Str("state", state.String()).
				Msg("Served from cache")
			return resp, nil
		}
		// Corrupted entry: drop it and fall through to the network.
		e.logger.Warn().Err(err).Str("key", fp).Msg("Dropping undecodable cache entry")
		e.cache.Delete(fp)
	}

	resp, err := e.fetch(ctx, req, endpoint)
	if err != nil {
		return nil, err
	}

	e.storeResponse(fp, resp)
	return resp, nil
}

// fetch runs the retry loop: circuit check, rate limit gate, network call,
// classification, backoff. The circuit check is repeated on every attempt
// since concurrent failures may have opened it mid-sequence.
func (e *Executor) fetch(ctx context.Context, req Request, endpoint string) (*Response, error) {
	policy := e.config.Retry
	br := e.Breaker(endpoint)

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, e.deadlineError(endpoint, lastErr, err)
		}

		if err := br.Allow(); err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassCircuit)).Inc()
			requestsTotal.WithLabelValues(endpoint, "circuit_open").Inc()
			e.logger.Warn().Str("endpoint", endpoint).Msg("Circuit open, failing fast")
			return nil, &APIError{
				Endpoint:  endpoint,
				Retryable: false,
				Message:   "circuit breaker open",
				Err:       err,
			}
		}

		if err := e.limiter.Acquire(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, e.deadlineError(endpoint, lastErr, err)
			}
			errorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			return nil, &APIError{
				Endpoint:  endpoint,
				Retryable: true,
				Message:   "rejected by local rate limiter",
				Err:       err,
			}
		}

		resp, netErr := e.do(ctx, req)
		if netErr == nil && resp.StatusCode < 400 {
			br.RecordSuccess()
			requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
			if attempt > 0 {
				e.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return resp, nil
		}

		status := 0
		if netErr == nil {
			status = resp.StatusCode
		}
		class := classify(status, netErr)
		retryable := netErr != nil || policy.Retryable(status)

		lastErr = netErr
		if netErr == nil {
			lastErr = fmt.Errorf("provider returned status %d", status)
			requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", status)).Inc()
		} else {
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		}

		e.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", status).
			Str("error_class", string(class)).
			Int("attempt", attempt+1).
			Msg("Request attempt failed")

		// A failed half-open probe reopens the circuit immediately;
		// retrying would just race other callers into a flapping endpoint.
		if br.State() == CircuitHalfOpen {
			br.RecordFailure()
			errorsTotal.WithLabelValues(string(class)).Inc()
			return nil, &APIError{
				StatusCode: status,
				Endpoint:   endpoint,
				Retryable:  retryable,
				Message:    "probe call failed",
				Err:        lastErr,
			}
		}

		if retryable && attempt < policy.MaxRetries {
			if err := sleepBackoff(ctx, policy, attempt, class); err != nil {
				return nil, e.deadlineError(endpoint, lastErr, err)
			}
			continue
		}

		// Terminal: not retryable, or retries exhausted.
		br.RecordFailure()
		errorsTotal.WithLabelValues(string(class)).Inc()

		message := "request failed"
		if retryable {
			message = fmt.Sprintf("%v after %d attempts", ErrRetryExhausted, attempt+1)
			retryExhaustedTotal.WithLabelValues(string(class)).Inc()
		}

		return nil, &APIError{
			StatusCode: status,
			Endpoint:   endpoint,
			Retryable:  retryable,
			Message:    message,
			Err:        lastErr,
		}
	}
}

// do performs a single HTTP attempt and reads the body fully.
func (e *Executor) do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("User-Agent", e.config.UserAgent)
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	httpResp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       data,
	}, nil
}

// scheduleRefresh starts one background refresh per fingerprint. The result
// is only written back to the store; the caller already holds the stale
// value.
func (e *Executor) scheduleRefresh(fp string, req Request, endpoint string) {
	e.mu.Lock()
	if _, inFlight := e.refreshing[fp]; inFlight {
		e.mu.Unlock()
		return
	}
	e.refreshing[fp] = struct{}{}
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.refreshing, fp)
			e.mu.Unlock()
		}()

		// Detached from the caller: the stale value was already served.
		ctx, cancel := context.WithTimeout(context.Background(), e.config.RefreshTimeout)
		defer cancel()

		resp, err := e.fetch(ctx, req, endpoint)
		if err != nil {
			refreshesTotal.WithLabelValues("error").Inc()
			e.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Background refresh failed")
			return
		}

		e.storeResponse(fp, resp)
		refreshesTotal.WithLabelValues("ok").Inc()
		e.logger.Debug().Str("endpoint", endpoint).Msg("Background refresh complete")
	}()
}

func (e *Executor) storeResponse(fp string, resp *Response) {
	encoded, err := json.Marshal(resp)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to encode response for cache")
		return
	}
	e.cache.Set(fp, encoded, e.config.CacheTTL, e.config.CacheStaleAfter)
}

func (e *Executor) deadlineError(endpoint string, lastErr, cause error) error {
	errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
	err := lastErr
	if err == nil {
		err = cause
	}
	return &APIError{
		Endpoint:  endpoint,
		Retryable: true, // the caller may re-issue later
		Message:   ErrDeadlineExceeded.Error(),
		Err:       err,
	}
}

func decodeCached(value json.RawMessage) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(value, &resp); err != nil {
		return nil, fmt.Errorf("decode cached response: %w", err)
	}
	return &resp, nil
}

func endpointOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return rawURL
	}
	return u.Path
}
