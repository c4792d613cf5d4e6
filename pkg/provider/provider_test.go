package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veritylabs/research-client/internal/testutil"
	"github.com/veritylabs/research-client/pkg/cache"
	"github.com/veritylabs/research-client/pkg/client"
	"github.com/veritylabs/research-client/pkg/ratelimit"
)

func newTestProvider(t *testing.T, baseURL, apiKey string) *HTTPProvider {
	t.Helper()

	store := cache.New(cache.Options{
		DefaultTTL:        time.Minute,
		DefaultStaleAfter: 30 * time.Second,
	})
	t.Cleanup(store.Close)

	exec, err := client.New(store, ratelimit.New(ratelimit.Config{Rate: 1000, Burst: 1000}), client.DefaultConfig())
	if err != nil {
		t.Fatalf("client.New() failed: %v", err)
	}

	p, err := NewHTTP(exec, HTTPConfig{BaseURL: baseURL, APIKey: apiKey})
	if err != nil {
		t.Fatalf("NewHTTP() failed: %v", err)
	}
	return p
}

func TestSearch_MissingCredentialFailsFast(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	p := newTestProvider(t, mock.URL(), "")

	_, err := p.Search(context.Background(), "anything", SearchOptions{})
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("Search() error = %v, want ErrMissingCredential", err)
	}
	if mock.TotalRequests() != 0 {
		t.Error("Search() hit the network despite missing credential")
	}
}

func TestSearch_ParsesResults(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse("/search", testutil.NewSearchResponse(
		testutil.SearchResult{Title: "Go 1.24 released", URL: "https://go.dev/blog", Contents: "details"},
		testutil.SearchResult{Title: "Untitled", Contents: "more"},
	))

	p := newTestProvider(t, mock.URL(), "secret")

	results, err := p.Search(context.Background(), "go release", SearchOptions{MaxResults: 2})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Title != "Go 1.24 released" || results[0].URL != "https://go.dev/blog" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
}

func TestSearch_SendsBearerToken(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse("/search", testutil.NewSearchResponse())

	p := newTestProvider(t, mock.URL(), "secret-key")

	if _, err := p.Search(context.Background(), "q", SearchOptions{}); err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if got := mock.LastRequest.Header.Get("Authorization"); got != "Bearer secret-key" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
}

func TestSearch_PropagatesAPIError(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse("/search", testutil.NewBadRequestResponse())

	p := newTestProvider(t, mock.URL(), "secret")

	_, err := p.Search(context.Background(), "q", SearchOptions{})
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Search() error = %v, want *client.APIError", err)
	}
	if apiErr.StatusCode != 400 {
		t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
	}
}

func TestNewHTTP_Validation(t *testing.T) {
	if _, err := NewHTTP(nil, HTTPConfig{BaseURL: "http://x"}); err == nil {
		t.Error("NewHTTP(nil executor) succeeded, want error")
	}

	store := cache.New(cache.DefaultOptions())
	defer store.Close()
	exec, err := client.New(store, ratelimit.New(ratelimit.DefaultConfig()), client.DefaultConfig())
	if err != nil {
		t.Fatalf("client.New() failed: %v", err)
	}

	if _, err := NewHTTP(exec, HTTPConfig{}); err == nil {
		t.Error("NewHTTP without base URL succeeded, want error")
	}
}
