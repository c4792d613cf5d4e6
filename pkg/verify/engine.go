package verify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/veritylabs/research-client/pkg/extract"
	"github.com/veritylabs/research-client/pkg/provider"
)

// Config tunes the verification engine. Zero values select the defaults
// from DefaultConfig.
type Config struct {
	// MaxInFlight bounds concurrent research queries per run.
	MaxInFlight int

	// DefaultSources is used when a request leaves Sources unset.
	DefaultSources int

	// SimilarityThreshold is the minimum token overlap (Jaccard) for two
	// facts to be compared at all.
	SimilarityThreshold float64

	// Scoring weights. See computeScore.
	ScoreBase           float64
	CorroborationWeight float64
	SourceWeight        float64
	ConflictWeight      float64

	// Extract selects which extraction heuristics run per source.
	Extract extract.Options
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxInFlight:         4,
		DefaultSources:      5,
		SimilarityThreshold: 0.35,
		ScoreBase:           0.30,
		CorroborationWeight: 0.08,
		SourceWeight:        0.05,
		ConflictWeight:      0.12,
		Extract:             extract.DefaultOptions(),
	}
}

// Deps are the engine's collaborators.
type Deps struct {
	Provider  provider.SearchProvider
	Extractor extract.Extractor
}

// Engine runs verification: a primary research query plus verification
// queries, fact extraction per source, and cross-source confidence scoring.
type Engine struct {
	provider  provider.SearchProvider
	extractor extract.Extractor
	cfg       Config
	logger    zerolog.Logger
}

// New creates a verification engine.
func New(deps Deps, cfg Config) (*Engine, error) {
	if deps.Provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor cannot be nil")
	}

	def := DefaultConfig()
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}
	if cfg.DefaultSources <= 0 {
		cfg.DefaultSources = def.DefaultSources
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.ScoreBase == 0 && cfg.CorroborationWeight == 0 &&
		cfg.SourceWeight == 0 && cfg.ConflictWeight == 0 {
		cfg.ScoreBase = def.ScoreBase
		cfg.CorroborationWeight = def.CorroborationWeight
		cfg.SourceWeight = def.SourceWeight
		cfg.ConflictWeight = def.ConflictWeight
	}
	if !cfg.Extract.Entities && !cfg.Extract.Relationships &&
		!cfg.Extract.Statements && !cfg.Extract.Sentiment {
		cfg.Extract = def.Extract
	}

	return &Engine{
		provider:  deps.Provider,
		extractor: deps.Extractor,
		cfg:       cfg,
		logger:    log.With().Str("component", "verify").Logger(),
	}, nil
}

// queryResult is the per-query slot of a verification run. Slots are
// written only by the goroutine that owns the index.
type queryResult struct {
	query   string
	status  queryStatus
	sources []provider.SourceResult
	err     error
}

// VerifyResearch runs the full verification pipeline for req.
//
// The primary query is load-bearing: if it fails terminally the run fails.
// Verification queries degrade instead, surfacing as FailedQueries in the
// confidence details.
func (e *Engine) VerifyResearch(ctx context.Context, req Request) (*VerificationResult, error) {
	if err := e.validate(&req); err != nil {
		Verifications.WithLabelValues("validation_error").Inc()
		return nil, err
	}

	runID := uuid.NewString()
	start := time.Now()
	logger := e.logger.With().Str("run_id", runID).Logger()

	results, err := e.runQueries(ctx, req)
	if err != nil {
		Verifications.WithLabelValues("upstream_error").Inc()
		logger.Error().Err(err).Str("query", req.Query).Msg("Primary query failed")
		return nil, err
	}

	facts, details, err := e.extractAll(results)
	if err != nil {
		Verifications.WithLabelValues("processing_error").Inc()
		logger.Error().Err(err).Msg("Fact extraction failed")
		return nil, err
	}

	corroborations, conflicts := compareFacts(facts, e.cfg.SimilarityThreshold)
	details.Corroborations = corroborations
	details.ConflictingClaims = conflicts
	ConflictsDetected.Add(float64(len(conflicts)))

	score := computeScore(e.cfg, corroborations, len(details.UniqueSources), len(conflicts))
	VerificationScore.Observe(score)

	result := &VerificationResult{
		RunID:           runID,
		Query:           req.Query,
		VerifiedResults: dedupeFacts(facts, req.MinConfidence),
		Confidence: Confidence{
			Score:   score,
			Details: details,
		},
	}

	Verifications.WithLabelValues("success").Inc()
	VerificationDuration.Observe(time.Since(start).Seconds())
	logger.Info().
		Str("query", req.Query).
		Int("verification_queries", len(req.VerificationQueries)).
		Int("sources", details.SourceCount).
		Int("failed_queries", details.FailedQueries).
		Int("conflicts", len(conflicts)).
		Float64("score", score).
		Dur("duration", time.Since(start)).
		Msg("Verification run completed")

	return result, nil
}

// validate checks req before any I/O and fills defaults.
func (e *Engine) validate(req *Request) error {
	if req.Query == "" {
		return &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	for i, q := range req.VerificationQueries {
		if q == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("verificationQueries[%d]", i),
				Reason: "must not be empty",
			}
		}
	}
	if req.Sources == nil {
		n := e.cfg.DefaultSources
		req.Sources = &n
	} else if *req.Sources < 1 || *req.Sources > MaxSources {
		return &ValidationError{
			Field:  "sources",
			Reason: fmt.Sprintf("must be between 1 and %d", MaxSources),
		}
	}
	if req.MinConfidence < 0 || req.MinConfidence > 1 {
		return &ValidationError{Field: "minConfidence", Reason: "must be between 0 and 1"}
	}
	return nil
}

// runQueries fans out the primary and verification queries with bounded
// parallelism. Only the primary query's error propagates.
func (e *Engine) runQueries(ctx context.Context, req Request) ([]queryResult, error) {
	queries := append([]string{req.Query}, req.VerificationQueries...)
	results := make([]queryResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxInFlight)

	for i, q := range queries {
		results[i] = queryResult{query: q, status: statusPending}
		g.Go(func() error {
			results[i].status = statusInFlight
			sources, err := e.provider.Search(gctx, q, provider.SearchOptions{
				MaxResults: *req.Sources,
			})
			if err != nil {
				results[i].status = statusFailed
				results[i].err = err
				QueriesTotal.WithLabelValues(string(statusFailed)).Inc()
				if i == 0 {
					return err
				}
				e.logger.Warn().Err(err).Str("query", q).Msg("Verification query failed, degrading")
				return nil
			}
			results[i].status = statusSucceeded
			results[i].sources = sources
			QueriesTotal.WithLabelValues(string(statusSucceeded)).Inc()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// extractAll runs fact extraction over every source of every successful
// query and tags each fact with its origin.
func (e *Engine) extractAll(results []queryResult) ([]Fact, ConfidenceDetails, error) {
	var (
		facts   []Fact
		details ConfidenceDetails
		origins = make(map[string]bool)
	)

	for _, r := range results {
		if r.status != statusSucceeded {
			details.FailedQueries++
			continue
		}
		for _, src := range r.sources {
			details.SourceCount++
			origin := normalizeOrigin(src)
			origins[origin] = true

			ext, err := e.extractor.ExtractFacts(src.Contents, e.cfg.Extract)
			if err != nil {
				return nil, details, &DataProcessingError{Stage: "fact-extraction", Err: err}
			}
			for _, f := range ext.Facts {
				if err := checkFact(f); err != nil {
					return nil, details, &DataProcessingError{Stage: "fact-extraction", Err: err}
				}
				facts = append(facts, Fact{
					Fact:       f.Fact,
					Type:       f.Type,
					Confidence: f.Confidence,
					Sentiment:  f.Sentiment,
					Source:     origin,
					SourceURL:  src.URL,
				})
			}
		}
	}

	details.UniqueSources = make([]string, 0, len(origins))
	for o := range origins {
		details.UniqueSources = append(details.UniqueSources, o)
	}
	sort.Strings(details.UniqueSources)

	return facts, details, nil
}

// checkFact rejects malformed extractor output before it can poison the
// scoring pass.
func checkFact(f extract.Fact) error {
	if f.Fact == "" {
		return errors.New("extracted fact has empty text")
	}
	if math.IsNaN(f.Confidence) || f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("extracted fact %q has confidence %v outside [0, 1]", f.Fact, f.Confidence)
	}
	return nil
}
