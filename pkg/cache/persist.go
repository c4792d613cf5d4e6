package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// Persister stores cache entries durably so they survive process restarts.
// The format is opaque to the store; only the round-trip guarantee matters.
type Persister interface {
	Save(ctx context.Context, entries []Entry) error
	Load(ctx context.Context) ([]Entry, error)
}

// FilePersister stores entries as a single JSON file. Writes go through a
// temporary file and a rename so a crash mid-save never corrupts the file.
type FilePersister struct {
	path string
}

// NewFilePersister creates a file persister at path, creating parent
// directories as needed.
func NewFilePersister(path string) (*FilePersister, error) {
	if path == "" {
		return nil, fmt.Errorf("persister path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FilePersister{path: path}, nil
}

// Save implements Persister.
func (p *FilePersister) Save(_ context.Context, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache entries: %w", err)
	}

	tmpPath := p.path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}

	return os.Rename(tmpPath, p.path)
}

// Load implements Persister. A missing file is not an error; it simply
// yields no entries.
func (p *FilePersister) Load(_ context.Context) ([]Entry, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal cache entries: %w", err)
	}
	return entries, nil
}

// RedisPersister stores entries under a single namespaced Redis key. The
// Redis key itself expires with the longest-lived entry so abandoned
// namespaces do not accumulate.
type RedisPersister struct {
	redis     *redis.Client
	namespace string
}

// NewRedisPersister creates a Redis-backed persister.
func NewRedisPersister(client *redis.Client, namespace string) (*RedisPersister, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if namespace == "" {
		namespace = "rv:cache"
	}
	return &RedisPersister{redis: client, namespace: namespace}, nil
}

// Save implements Persister.
func (p *RedisPersister) Save(ctx context.Context, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal cache entries: %w", err)
	}

	now := time.Now()
	var maxRemaining time.Duration
	for i := range entries {
		if rem := entries[i].Remaining(now); rem > maxRemaining {
			maxRemaining = rem
		}
	}
	if maxRemaining <= 0 {
		// Nothing worth keeping; drop the namespace instead.
		return p.redis.Del(ctx, p.namespace).Err()
	}

	if err := p.redis.Set(ctx, p.namespace, data, maxRemaining).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load implements Persister.
func (p *RedisPersister) Load(ctx context.Context) ([]Entry, error) {
	data, err := p.redis.Get(ctx, p.namespace).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal cache entries: %w", err)
	}
	return entries, nil
}
