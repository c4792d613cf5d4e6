package cache

import (
	"encoding/json"
	"time"
)

// State describes the freshness of a cache entry at a point in time.
type State int

const (
	// StateMiss means the entry is absent or has passed its TTL.
	StateMiss State = iota

	// StateFresh means the entry is younger than its stale-after bound.
	StateFresh

	// StateStale means the entry may still be served but should be
	// refreshed in the background (stale-while-revalidate).
	StateStale
)

// String returns the state name for logging and metrics labels.
func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "miss"
	}
}

// Entry is one cached provider payload.
type Entry struct {
	// Key is the semantic fingerprint of the request that produced Value.
	Key string `json:"key"`

	// Value is the opaque cached payload.
	Value json.RawMessage `json:"value"`

	// CreatedAt is when the entry was written. Overwriting resets it.
	CreatedAt time.Time `json:"created_at"`

	// TTL is the total lifetime of the entry.
	TTL time.Duration `json:"ttl"`

	// StaleAfter bounds the fresh window. Invariant: 0 < StaleAfter <= TTL.
	StaleAfter time.Duration `json:"stale_after"`
}

// State returns the freshness of the entry at the given time.
func (e *Entry) State(now time.Time) State {
	elapsed := now.Sub(e.CreatedAt)
	switch {
	case elapsed >= e.TTL:
		return StateMiss
	case elapsed >= e.StaleAfter:
		return StateStale
	default:
		return StateFresh
	}
}

// IsExpired reports whether the entry has passed its TTL.
func (e *Entry) IsExpired(now time.Time) bool {
	return now.Sub(e.CreatedAt) >= e.TTL
}

// Remaining returns the time until expiration, or 0 if already expired.
func (e *Entry) Remaining(now time.Time) time.Duration {
	rem := e.TTL - now.Sub(e.CreatedAt)
	if rem < 0 {
		return 0
	}
	return rem
}
