// Command research-proxy serves the research verification API over HTTP.
//
// It wires the cache store, rate limiter, resilient executor, provider
// binding, and verification engine together from environment configuration,
// preloads a cache snapshot when persistence is enabled, and saves one on
// shutdown.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/veritylabs/research-client/internal/config"
	"github.com/veritylabs/research-client/pkg/cache"
	"github.com/veritylabs/research-client/pkg/client"
	"github.com/veritylabs/research-client/pkg/extract"
	"github.com/veritylabs/research-client/pkg/logging"
	"github.com/veritylabs/research-client/pkg/provider"
	"github.com/veritylabs/research-client/pkg/ratelimit"
	"github.com/veritylabs/research-client/pkg/verify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "research-proxy: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Server.LogLevel),
		Pretty: cfg.Server.LogPretty,
		Output: os.Stderr,
	})

	if !cfg.HasProvider() {
		return errors.New("RESEARCH_PROVIDER_URL and RESEARCH_API_KEY are required")
	}

	store := cache.New(cache.Options{
		DefaultTTL:        cfg.Cache.TTL,
		DefaultStaleAfter: cfg.Cache.StaleAfter,
		JanitorInterval:   cfg.Cache.TTL / 4,
	})
	defer store.Close()

	persister, err := buildPersister(cfg)
	if err != nil {
		return fmt.Errorf("build persister: %w", err)
	}
	if persister != nil {
		ctx := context.Background()
		n, err := store.Preload(ctx, persister)
		if err != nil {
			logger.Warn().Err(err).Msg("Cache preload failed, starting cold")
		} else {
			logger.Info().Int("entries", n).Msg("Cache preloaded")
		}
	}

	limiter := ratelimit.New(ratelimit.Config{
		Rate:     cfg.Client.RateLimit,
		Burst:    cfg.Client.RateBurst,
		FailFast: cfg.Client.RateFailFast,
	})

	retry := client.DefaultRetryPolicy()
	retry.MaxRetries = cfg.Client.MaxRetries
	retry.BaseDelay = cfg.Client.RetryBaseDelay

	exec, err := client.New(store, limiter, client.Config{
		HTTPTimeout:     cfg.Client.HTTPTimeout,
		CacheTTL:        cfg.Cache.TTL,
		CacheStaleAfter: cfg.Cache.StaleAfter,
		Retry:           retry,
		Circuit: client.BreakerConfig{
			FailureThreshold: cfg.Client.CircuitThreshold,
			Cooldown:         cfg.Client.CircuitCooldown,
		},
	})
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}

	searchProvider, err := provider.NewHTTP(exec, provider.HTTPConfig{
		BaseURL:           cfg.Provider.BaseURL,
		APIKey:            cfg.Provider.APIKey,
		DefaultMaxResults: cfg.Verify.DefaultSources,
	})
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	engineCfg := verify.DefaultConfig()
	engineCfg.MaxInFlight = cfg.Verify.MaxInFlight
	engineCfg.DefaultSources = cfg.Verify.DefaultSources
	engineCfg.SimilarityThreshold = cfg.Verify.SimilarityThreshold
	engineCfg.ScoreBase = cfg.Verify.ScoreBase
	engineCfg.CorroborationWeight = cfg.Verify.CorroborationWeight
	engineCfg.SourceWeight = cfg.Verify.SourceWeight
	engineCfg.ConflictWeight = cfg.Verify.ConflictWeight

	engine, err := verify.New(verify.Deps{
		Provider:  searchProvider,
		Extractor: extract.NewHeuristic(),
	}, engineCfg)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: newRouter(engine, store, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Starting research proxy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	if persister != nil {
		if err := store.SaveTo(ctx, persister); err != nil {
			logger.Error().Err(err).Msg("Cache save failed")
		} else {
			logger.Info().Int("entries", store.Len()).Msg("Cache saved")
		}
	}

	return nil
}

// buildPersister returns nil when persistence is disabled.
func buildPersister(cfg *config.Config) (cache.Persister, error) {
	switch cfg.Cache.Persistence {
	case config.PersistNone:
		return nil, nil
	case config.PersistFile:
		return cache.NewFilePersister(cfg.Cache.File)
	case config.PersistRedis:
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return cache.NewRedisPersister(redis.NewClient(opts), "research")
	default:
		return nil, fmt.Errorf("unknown persistence mode %q", cfg.Cache.Persistence)
	}
}

// verifier is the slice of the engine the HTTP layer needs.
type verifier interface {
	VerifyResearch(ctx context.Context, req verify.Request) (*verify.VerificationResult, error)
}

func newRouter(v verifier, store *cache.Store, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Post("/v1/verify", handleVerify(v, logger))
	r.Get("/health", handleHealth(store))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func handleVerify(v verifier, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verify.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		result, err := v.VerifyResearch(r.Context(), req)
		if err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				logger.Error().Err(err).Str("query", req.Query).Msg("Verification failed")
			}
			writeError(w, status, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func handleHealth(store *cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := store.Stats()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"cache_entries":  stats.Size,
			"cache_hit_rate": stats.HitRate,
		})
	}
}

// statusFor maps component errors to HTTP status codes. Validation errors
// are the caller's fault, upstream failures are a bad gateway, and
// processing faults stay internal.
func statusFor(err error) int {
	var apiErr *client.APIError
	var dpe *verify.DataProcessingError

	switch {
	case verify.IsValidation(err):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.As(err, &dpe):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
