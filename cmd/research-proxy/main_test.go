package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/veritylabs/research-client/internal/config"
	"github.com/veritylabs/research-client/pkg/cache"
	"github.com/veritylabs/research-client/pkg/client"
	"github.com/veritylabs/research-client/pkg/verify"
)

// stubVerifier returns a fixed result or error.
type stubVerifier struct {
	result *verify.VerificationResult
	err    error
}

func (s *stubVerifier) VerifyResearch(ctx context.Context, req verify.Request) (*verify.VerificationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestRouter(t *testing.T, v verifier) (http.Handler, *cache.Store) {
	t.Helper()
	store := cache.New(cache.Options{})
	t.Cleanup(store.Close)
	return newRouter(v, store, zerolog.Nop()), store
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &stubVerifier{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &stubVerifier{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("metrics output should include process metrics")
	}
}

func TestVerifyEndpoint(t *testing.T) {
	result := &verify.VerificationResult{
		RunID: "run-1",
		Query: "test query",
		Confidence: verify.Confidence{
			Score: 0.62,
		},
	}
	router, _ := newTestRouter(t, &stubVerifier{result: result})

	body := strings.NewReader(`{"query": "test query"}`)
	req := httptest.NewRequest("POST", "/v1/verify", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var got verify.VerificationResult
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if got.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", got.RunID)
	}
	if got.Confidence.Score != 0.62 {
		t.Errorf("Score = %v, want 0.62", got.Confidence.Score)
	}
}

func TestVerifyEndpointMalformedBody(t *testing.T) {
	router, _ := newTestRouter(t, &stubVerifier{})

	req := httptest.NewRequest("POST", "/v1/verify", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestVerifyEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "validation error",
			err:        &verify.ValidationError{Field: "query", Reason: "must not be empty"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "upstream error",
			err:        &client.APIError{StatusCode: 503, Endpoint: "/search", Message: "unavailable"},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "processing error",
			err:        &verify.DataProcessingError{Stage: "fact-extraction", Err: errors.New("boom")},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unknown error",
			err:        errors.New("something else"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, &stubVerifier{err: tt.err})

			req := httptest.NewRequest("POST", "/v1/verify", strings.NewReader(`{"query": "q"}`))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if body["error"] == "" {
				t.Error("error body should carry a message")
			}
		})
	}
}

func TestBuildPersisterModes(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		wantNil bool
	}{
		{"none", "none", true},
		{"file", "file", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CACHE_PERSISTENCE", tt.mode)
			if tt.mode == "file" {
				t.Setenv("CACHE_FILE", t.TempDir()+"/cache.json")
			}

			cfg, err := config.Load()
			if err != nil {
				t.Fatalf("config: %v", err)
			}

			p, err := buildPersister(cfg)
			if err != nil {
				t.Fatalf("buildPersister() error = %v", err)
			}
			if (p == nil) != tt.wantNil {
				t.Errorf("persister nil = %v, want %v", p == nil, tt.wantNil)
			}
		})
	}
}
