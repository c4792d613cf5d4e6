// Package provider binds the executor to the external search/research
// service. The engine depends on the SearchProvider interface only, so
// production and test implementations are interchangeable.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/veritylabs/research-client/pkg/client"
)

// ErrMissingCredential is returned at the first outbound call when no API
// key is configured. The process keeps running; only research calls fail.
var ErrMissingCredential = errors.New("research provider API key is not configured (set RESEARCH_API_KEY)")

// SourceResult is one document returned by a provider query.
type SourceResult struct {
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	Contents string `json:"contents"`
}

// SearchOptions tunes a single search call.
type SearchOptions struct {
	// MaxResults bounds the number of sources returned.
	MaxResults int
}

// SearchProvider is the outbound boundary to the research service.
type SearchProvider interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]SourceResult, error)
}

// HTTPConfig configures the HTTP provider binding.
type HTTPConfig struct {
	// BaseURL is the provider's API root, without a trailing slash.
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// DefaultMaxResults applies when SearchOptions.MaxResults is zero.
	DefaultMaxResults int
}

// HTTPProvider drives the resilient executor against the real provider API.
type HTTPProvider struct {
	exec   *client.Executor
	config HTTPConfig
	logger zerolog.Logger
}

// NewHTTP creates an HTTP provider. A missing API key is deliberately not
// an error here: it surfaces as a descriptive failure on the first call.
func NewHTTP(exec *client.Executor, cfg HTTPConfig) (*HTTPProvider, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider base URL is required")
	}
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = 5
	}

	return &HTTPProvider{
		exec:   exec,
		config: cfg,
		logger: log.With().Str("component", "provider").Logger(),
	}, nil
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []SourceResult `json:"results"`
}

// Search implements SearchProvider.
func (p *HTTPProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]SourceResult, error) {
	if p.config.APIKey == "" {
		return nil, ErrMissingCredential
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = p.config.DefaultMaxResults
	}

	body, err := json.Marshal(searchRequest{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	header := make(http.Header)
	header.Set("Authorization", "Bearer "+p.config.APIKey)
	header.Set("Content-Type", "application/json")

	resp, err := p.exec.Execute(ctx, client.Request{
		Method: http.MethodPost,
		URL:    p.config.BaseURL + "/search",
		Header: header,
		Body:   body,
		Query:  query,
		Params: map[string]string{"max_results": strconv.Itoa(maxResults)},
	})
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	p.logger.Debug().
		Str("query", query).
		Int("results", len(parsed.Results)).
		Bool("from_cache", resp.FromCache).
		Msg("Search complete")
	return parsed.Results, nil
}
