// Package testutil provides testing utilities for the research client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mock provider response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockProvider is a configurable mock research provider server. Besides
// fixed per-path responses it supports scripted sequences (fail twice, then
// succeed) for retry and circuit breaker tests.
type MockProvider struct {
	server *httptest.Server

	mu        sync.Mutex
	handlers  map[string]func(w http.ResponseWriter, r *http.Request)
	sequences map[string][]MockResponse

	RequestCount   int
	requestsByPath map[string]int
	LastRequest    *http.Request
}

// NewMockProvider creates a running mock provider server.
func NewMockProvider() *MockProvider {
	mock := &MockProvider{
		handlers:       make(map[string]func(w http.ResponseWriter, r *http.Request)),
		sequences:      make(map[string][]MockResponse),
		requestsByPath: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.requestsByPath[r.URL.Path]++
		mock.LastRequest = r.Clone(r.Context())

		if seq, ok := mock.sequences[r.URL.Path]; ok && len(seq) > 0 {
			resp := seq[0]
			if len(seq) > 1 {
				mock.sequences[r.URL.Path] = seq[1:]
			}
			mock.mu.Unlock()
			writeMockResponse(w, resp)
			return
		}

		handler, ok := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if ok {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockProvider) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockProvider) Close() {
	m.server.Close()
}

// Reset clears counters and scripted sequences.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.requestsByPath = make(map[string]int)
	m.sequences = make(map[string][]MockResponse)
	m.LastRequest = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockProvider) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockProvider) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeMockResponse(w, resp)
	})
}

// SetSequence scripts consecutive responses for a path. The last response
// repeats once the sequence is consumed.
func (m *MockProvider) SetSequence(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[path] = responses
}

// Requests returns the number of requests made to a path.
func (m *MockProvider) Requests(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestsByPath[path]
}

// TotalRequests returns the number of requests made to the server.
func (m *MockProvider) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

func (m *MockProvider) defaultHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"results": []}`))
}

func writeMockResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// SearchResult mirrors the wire shape of one provider search result.
type SearchResult struct {
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	Contents string `json:"contents"`
}

// NewSearchResponse builds a 200 response carrying the given results.
func NewSearchResponse(results ...SearchResult) MockResponse {
	payload, err := json.Marshal(map[string]any{"results": results})
	if err != nil {
		panic(fmt.Sprintf("marshal search results: %v", err))
	}
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(payload),
	}
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"error": "service unavailable"}`,
	}
}

// NewRateLimitedResponse creates a 429 Too Many Requests response.
func NewRateLimitedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "rate limit exceeded"}`,
	}
}

// NewBadRequestResponse creates a 400 Bad Request response.
func NewBadRequestResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error": "bad request"}`,
	}
}
