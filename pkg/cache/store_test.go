package cache

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(Options{
		DefaultTTL:        time.Minute,
		DefaultStaleAfter: 30 * time.Second,
	})
	t.Cleanup(s.Close)
	return s
}

func TestStore_FreshnessLifecycle(t *testing.T) {
	s := newTestStore(t)

	s.Set("k", json.RawMessage(`"v"`), 100*time.Millisecond, 50*time.Millisecond)

	value, state := s.Get("k")
	require.Equal(t, StateFresh, state)
	assert.JSONEq(t, `"v"`, string(value))

	time.Sleep(60 * time.Millisecond)
	value, state = s.Get("k")
	require.Equal(t, StateStale, state, "entry should be stale after stale-after elapses")
	assert.JSONEq(t, `"v"`, string(value), "stale hit must return the original value")

	time.Sleep(50 * time.Millisecond)
	value, state = s.Get("k")
	assert.Equal(t, StateMiss, state, "entry should be a miss after ttl elapses")
	assert.Nil(t, value)
}

func TestStore_SetResetsCreatedAt(t *testing.T) {
	s := newTestStore(t)

	s.Set("k", json.RawMessage(`1`), 80*time.Millisecond, 40*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// Overwrite restarts the clock.
	s.Set("k", json.RawMessage(`2`), 80*time.Millisecond, 40*time.Millisecond)

	value, state := s.Get("k")
	require.Equal(t, StateFresh, state)
	assert.JSONEq(t, `2`, string(value))
}

func TestStore_StaleAfterClampedToTTL(t *testing.T) {
	s := newTestStore(t)

	// staleAfter > ttl violates the invariant; the store clamps it.
	s.Set("k", json.RawMessage(`"v"`), 50*time.Millisecond, time.Hour)

	_, state := s.Get("k")
	assert.Equal(t, StateFresh, state)

	time.Sleep(60 * time.Millisecond)
	_, state = s.Get("k")
	assert.Equal(t, StateMiss, state)
}

func TestStore_HasAndDelete(t *testing.T) {
	s := newTestStore(t)

	assert.False(t, s.Has("k"))

	s.SetDefault("k", json.RawMessage(`"v"`))
	assert.True(t, s.Has("k"))

	s.Delete("k")
	assert.False(t, s.Has("k"))

	s.SetDefault("a", json.RawMessage(`1`))
	s.SetDefault("b", json.RawMessage(`2`))
	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)

	// No traffic: hit rate must not divide by zero.
	stats := s.Stats()
	assert.Equal(t, 0.0, stats.HitRate)

	s.SetDefault("k", json.RawMessage(`"v"`))
	s.Get("k")     // hit
	s.Get("k")     // hit
	s.Get("other") // miss

	stats = s.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
	assert.Equal(t, 1, stats.Size)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Set("shared", json.RawMessage(`"v"`), time.Minute, 30*time.Second)
				s.Get("shared")
				s.Has("shared")
			}
		}()
	}
	wg.Wait()

	value, state := s.Get("shared")
	require.Equal(t, StateFresh, state)
	assert.JSONEq(t, `"v"`, string(value))
}

func TestStore_Janitor(t *testing.T) {
	s := New(Options{
		DefaultTTL:        time.Minute,
		DefaultStaleAfter: 30 * time.Second,
		JanitorInterval:   20 * time.Millisecond,
	})
	defer s.Close()

	s.Set("short", json.RawMessage(`"v"`), 10*time.Millisecond, 10*time.Millisecond)
	s.Set("long", json.RawMessage(`"v"`), time.Minute, 30*time.Second)

	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 1, s.Len(), "janitor should have swept the expired entry")
	assert.True(t, s.Has("long"))
}

func TestStore_SaveAndPreloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")

	p, err := NewFilePersister(path)
	require.NoError(t, err)

	s := newTestStore(t)
	s.Set("keep", json.RawMessage(`{"answer":42}`), time.Minute, 30*time.Second)
	s.Set("drop", json.RawMessage(`"gone"`), 20*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, s.SaveTo(ctx, p))

	// Simulate a restart after the short entry expired.
	time.Sleep(30 * time.Millisecond)

	restarted := newTestStore(t)
	restored, err := restarted.Preload(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, restored, "expired entries must not be restored")

	value, state := restarted.Get("keep")
	require.NotEqual(t, StateMiss, state)
	assert.JSONEq(t, `{"answer":42}`, string(value))

	_, state = restarted.Get("drop")
	assert.Equal(t, StateMiss, state)
}

func TestFilePersister_LoadMissingFile(t *testing.T) {
	p, err := NewFilePersister(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	entries, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewFilePersister_EmptyPath(t *testing.T) {
	_, err := NewFilePersister("")
	assert.Error(t, err)
}
