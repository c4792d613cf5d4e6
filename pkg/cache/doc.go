// Package cache provides a TTL and staleness aware in-memory store with
// optional persistence across process restarts.
//
// Entries move through three states as they age:
//
//   - fresh: younger than the stale-after bound, served directly
//   - stale: still usable, but callers should refresh in the background
//     (stale-while-revalidate)
//   - miss: past the TTL; treated as absent and evicted
//
// # Basic Usage
//
//	store := cache.New(cache.DefaultOptions())
//	defer store.Close()
//
//	key := cache.Fingerprint("climate change 2024", map[string]string{
//		"max_results": "5",
//	})
//
//	store.Set(key, payload, 15*time.Minute, 5*time.Minute)
//
//	value, state := store.Get(key)
//	switch state {
//	case cache.StateFresh:
//		// serve value
//	case cache.StateStale:
//		// serve value, schedule a background refresh
//	case cache.StateMiss:
//		// fetch a fresh value before serving
//	}
//
// # Fingerprints
//
// Keys are derived from the normalized query text plus a stable
// serialization of request parameters, so two requests differing only in
// whitespace or case share one cache slot.
//
// # Persistence
//
// A Persister saves unexpired entries and loads them on the next start:
//
//	p, _ := cache.NewFilePersister("/var/lib/research/cache.json")
//	_ = store.SaveTo(ctx, p)       // at shutdown
//	n, _ := store.Preload(ctx, p)  // at startup; n entries restored
//
// RedisPersister offers the same round trip against a shared Redis.
// Entries that expired while the process was down are not restored.
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - rv_cache_hits_total{state} - hits by freshness state
//   - rv_cache_misses_total - misses (absent or expired)
//   - rv_cache_evictions_total - expired entries removed
//   - rv_cache_entries - current entry count
//   - rv_cache_persist_errors_total{operation} - persistence failures
package cache
