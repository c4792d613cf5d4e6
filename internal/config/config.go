// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Persistence selects how cache snapshots are stored across restarts.
type Persistence string

const (
	PersistNone  Persistence = "none"
	PersistFile  Persistence = "file"
	PersistRedis Persistence = "redis"
)

// Config holds all application configuration.
type Config struct {
	Provider ProviderConfig
	Server   ServerConfig
	Cache    CacheConfig
	Client   ClientConfig
	Verify   VerifyConfig
}

// ProviderConfig holds upstream research provider settings.
type ProviderConfig struct {
	BaseURL string `env:"RESEARCH_PROVIDER_URL"`
	APIKey  string `env:"RESEARCH_API_KEY"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty       bool          `env:"LOG_PRETTY" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// CacheConfig holds cache store and persistence settings.
type CacheConfig struct {
	TTL         time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	StaleAfter  time.Duration `env:"CACHE_STALE_AFTER" envDefault:"15m"`
	Persistence Persistence   `env:"CACHE_PERSISTENCE" envDefault:"none"`
	File        string        `env:"CACHE_FILE" envDefault:"cache.json"`
	RedisURL    string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
}

// ClientConfig holds request executor settings.
type ClientConfig struct {
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	MaxRetries       int           `env:"MAX_RETRIES" envDefault:"3"`
	RetryBaseDelay   time.Duration `env:"RETRY_BASE_DELAY" envDefault:"500ms"`
	RateLimit        float64       `env:"RATE_LIMIT" envDefault:"10"`
	RateBurst        int           `env:"RATE_BURST" envDefault:"20"`
	RateFailFast     bool          `env:"RATE_FAIL_FAST" envDefault:"false"`
	CircuitThreshold int           `env:"CIRCUIT_THRESHOLD" envDefault:"5"`
	CircuitCooldown  time.Duration `env:"CIRCUIT_COOLDOWN" envDefault:"30s"`
}

// VerifyConfig holds verification engine settings.
type VerifyConfig struct {
	MaxInFlight         int     `env:"MAX_IN_FLIGHT" envDefault:"4"`
	DefaultSources      int     `env:"DEFAULT_SOURCES" envDefault:"5"`
	SimilarityThreshold float64 `env:"SIMILARITY_THRESHOLD" envDefault:"0.35"`
	ScoreBase           float64 `env:"SCORE_BASE" envDefault:"0.30"`
	CorroborationWeight float64 `env:"SCORE_CORROBORATION_WEIGHT" envDefault:"0.08"`
	SourceWeight        float64 `env:"SCORE_SOURCE_WEIGHT" envDefault:"0.05"`
	ConflictWeight      float64 `env:"SCORE_CONFLICT_WEIGHT" envDefault:"0.12"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.StaleAfter <= 0 || c.Cache.StaleAfter > c.Cache.TTL {
		return fmt.Errorf("CACHE_STALE_AFTER must be positive and at most CACHE_TTL, got %s", c.Cache.StaleAfter)
	}
	switch c.Cache.Persistence {
	case PersistNone, PersistFile, PersistRedis:
	default:
		return fmt.Errorf("CACHE_PERSISTENCE must be none, file, or redis, got %q", c.Cache.Persistence)
	}
	if c.Cache.Persistence == PersistFile && c.Cache.File == "" {
		return fmt.Errorf("CACHE_FILE is required when CACHE_PERSISTENCE=file")
	}
	if c.Cache.Persistence == PersistRedis && c.Cache.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when CACHE_PERSISTENCE=redis")
	}
	if c.Client.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.Client.MaxRetries)
	}
	if c.Client.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT must be positive, got %v", c.Client.RateLimit)
	}
	if c.Client.RateBurst < 1 {
		return fmt.Errorf("RATE_BURST must be at least 1, got %d", c.Client.RateBurst)
	}
	if c.Client.CircuitThreshold < 1 {
		return fmt.Errorf("CIRCUIT_THRESHOLD must be at least 1, got %d", c.Client.CircuitThreshold)
	}
	if c.Verify.MaxInFlight < 1 {
		return fmt.Errorf("MAX_IN_FLIGHT must be at least 1, got %d", c.Verify.MaxInFlight)
	}
	if c.Verify.SimilarityThreshold <= 0 || c.Verify.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0, 1], got %v", c.Verify.SimilarityThreshold)
	}
	if c.Verify.ScoreBase < 0 || c.Verify.ScoreBase > 1 {
		return fmt.Errorf("SCORE_BASE must be in [0, 1], got %v", c.Verify.ScoreBase)
	}
	if c.Verify.CorroborationWeight < 0 || c.Verify.SourceWeight < 0 || c.Verify.ConflictWeight < 0 {
		return fmt.Errorf("score weights must not be negative")
	}
	return nil
}

// HasProvider reports whether the upstream provider is fully configured.
func (c *Config) HasProvider() bool {
	return c.Provider.BaseURL != "" && c.Provider.APIKey != ""
}
