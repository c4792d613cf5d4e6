package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by freshness state (fresh, stale)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rv_cache_hits_total",
			Help: "Total number of cache hits by freshness state",
		},
		[]string{"state"},
	)

	// CacheMisses tracks cache misses (absent or expired entries)
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rv_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheEvictions tracks entries removed because their TTL elapsed
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rv_cache_evictions_total",
			Help: "Total number of expired entries evicted",
		},
	)

	// CacheEntries tracks the current number of live entries
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rv_cache_entries",
			Help: "Current number of entries in the cache store",
		},
	)

	// PersistErrors tracks persistence failures by operation
	PersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rv_cache_persist_errors_total",
			Help: "Total number of cache persistence errors",
		},
		[]string{"operation"}, // "save", "load"
	)
)
