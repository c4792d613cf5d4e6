package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures a Store.
type Options struct {
	// DefaultTTL is used by SetDefault when no per-entry TTL is given.
	DefaultTTL time.Duration

	// DefaultStaleAfter is used by SetDefault. Clamped to DefaultTTL.
	DefaultStaleAfter time.Duration

	// JanitorInterval controls how often expired entries are swept.
	// Zero disables the janitor; expired entries are then evicted lazily
	// on Get.
	JanitorInterval time.Duration
}

// DefaultOptions returns safe store defaults.
func DefaultOptions() Options {
	return Options{
		DefaultTTL:        15 * time.Minute,
		DefaultStaleAfter: 5 * time.Minute,
		JanitorInterval:   time.Minute,
	}
}

// Stats is a point-in-time snapshot of store effectiveness.
type Stats struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Store is a TTL and staleness aware in-memory key/value store. It is an
// explicitly constructed component with a defined lifecycle (New, Close) and
// is safe for concurrent use. Callers that need durability across process
// restarts attach a Persister via SaveTo and Preload.
type Store struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*Entry
	hits    uint64
	misses  uint64

	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a store and starts its janitor when configured.
func New(opts Options) *Store {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultOptions().DefaultTTL
	}
	if opts.DefaultStaleAfter <= 0 || opts.DefaultStaleAfter > opts.DefaultTTL {
		opts.DefaultStaleAfter = opts.DefaultTTL
	}

	s := &Store{
		opts:    opts,
		logger:  log.With().Str("component", "cache").Logger(),
		entries: make(map[string]*Entry),
		stop:    make(chan struct{}),
	}

	if opts.JanitorInterval > 0 {
		go s.janitor(opts.JanitorInterval)
	}

	return s
}

// Get returns the value for key together with its freshness state.
// An absent or expired entry counts as a miss; expired entries are evicted.
func (s *Store) Get(key string) (json.RawMessage, State) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		s.misses++
		CacheMisses.Inc()
		return nil, StateMiss
	}

	state := entry.State(now)
	if state == StateMiss {
		delete(s.entries, key)
		CacheEvictions.Inc()
		CacheEntries.Set(float64(len(s.entries)))
		s.misses++
		CacheMisses.Inc()
		return nil, StateMiss
	}

	s.hits++
	CacheHits.WithLabelValues(state.String()).Inc()
	return entry.Value, state
}

// Set stores value under key, overwriting unconditionally and resetting the
// entry's creation time. A non-positive or out-of-range staleAfter is
// clamped to ttl, preserving the staleAfter <= ttl invariant.
func (s *Store) Set(key string, value json.RawMessage, ttl, staleAfter time.Duration) {
	if ttl <= 0 {
		return
	}
	if staleAfter <= 0 || staleAfter > ttl {
		staleAfter = ttl
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &Entry{
		Key:        key,
		Value:      value,
		CreatedAt:  time.Now(),
		TTL:        ttl,
		StaleAfter: staleAfter,
	}
	CacheEntries.Set(float64(len(s.entries)))
}

// SetDefault stores value with the store's default TTL and stale-after.
func (s *Store) SetDefault(key string, value json.RawMessage) {
	s.Set(key, value, s.opts.DefaultTTL, s.opts.DefaultStaleAfter)
}

// Has reports whether key holds a usable (fresh or stale) entry.
// It does not count towards hit/miss statistics.
func (s *Store) Has(key string) bool {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	return ok && !entry.IsExpired(now)
}

// Delete removes key from the store.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	CacheEntries.Set(float64(len(s.entries)))
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*Entry)
	CacheEntries.Set(0)
}

// Len returns the current number of entries, expired ones included until
// the next sweep.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns a snapshot of hit/miss counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.hits + s.misses
	if total == 0 {
		total = 1
	}
	return Stats{
		Size:    len(s.entries),
		Hits:    s.hits,
		Misses:  s.misses,
		HitRate: float64(s.hits) / float64(total),
	}
}

// SaveTo persists all unexpired entries through p.
func (s *Store) SaveTo(ctx context.Context, p Persister) error {
	now := time.Now()

	s.mu.RLock()
	snapshot := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.IsExpired(now) {
			continue
		}
		snapshot = append(snapshot, *entry)
	}
	s.mu.RUnlock()

	if err := p.Save(ctx, snapshot); err != nil {
		PersistErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("save cache entries: %w", err)
	}

	s.logger.Debug().Int("entries", len(snapshot)).Msg("Cache saved")
	return nil
}

// Preload restores previously persisted entries, skipping any that expired
// while the process was down. It returns the number of entries restored.
func (s *Store) Preload(ctx context.Context, p Persister) (int, error) {
	entries, err := p.Load(ctx)
	if err != nil {
		PersistErrors.WithLabelValues("load").Inc()
		return 0, fmt.Errorf("load cache entries: %w", err)
	}

	now := time.Now()
	restored := 0

	s.mu.Lock()
	for i := range entries {
		entry := entries[i]
		if entry.Key == "" || entry.IsExpired(now) {
			continue
		}
		s.entries[entry.Key] = &entry
		restored++
	}
	CacheEntries.Set(float64(len(s.entries)))
	s.mu.Unlock()

	s.logger.Info().
		Int("restored", restored).
		Int("persisted", len(entries)).
		Msg("Cache preloaded")
	return restored, nil
}

// Close stops the janitor. The store remains usable afterwards but no
// longer sweeps expired entries in the background.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
}

func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	evicted := 0

	s.mu.Lock()
	for key, entry := range s.entries {
		if entry.IsExpired(now) {
			delete(s.entries, key)
			evicted++
		}
	}
	size := len(s.entries)
	s.mu.Unlock()

	if evicted > 0 {
		CacheEvictions.Add(float64(evicted))
		CacheEntries.Set(float64(size))
		s.logger.Debug().Int("evicted", evicted).Msg("Swept expired cache entries")
	}
}
