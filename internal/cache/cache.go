// Package cache provides a file-backed key/value store with time-based
// expiration. Each cache is loaded wholesale at process start and rewritten
// wholesale on Persist; a Sweep at the end of a run drops entries older than
// the expiration window so the files do not grow unbounded.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultTTL is the expiration window for cache entries.
const DefaultTTL = 15 * time.Minute

// Entry is one stored value with its write timestamp (unix seconds).
type Entry[T any] struct {
	Value     T     `json:"value"`
	Timestamp int64 `json:"timestamp"`
}

// Cache is a TTL key/value store persisted to a single JSON file.
type Cache[T any] struct {
	mu      sync.RWMutex
	path    string
	ttl     time.Duration
	entries map[string]Entry[T]
	now     func() time.Time
}

// New creates a cache persisted at path. Call Load before first use.
func New[T any](path string, ttl time.Duration) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[T]{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]Entry[T]),
		now:     time.Now,
	}
}

// Load reads the cache file. A missing file is not an error; a corrupt file
// is discarded and the cache starts empty.
func (c *Cache[T]) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache %s: %w", c.path, err)
	}

	entries := make(map[string]Entry[T])
	if err := json.Unmarshal(data, &entries); err != nil {
		// Corrupt cache file; start fresh rather than failing the run.
		return nil
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// Get returns the value for key if it exists and is younger than the
// expiration window. Expired entries are treated as absent but not removed;
// Sweep purges them.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.valid(entry) {
		var zero T
		return zero, false
	}
	return entry.Value, true
}

// Put stores value under key with a fresh timestamp, overwriting any
// previous entry.
func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry[T]{
		Value:     value,
		Timestamp: c.now().Unix(),
	}
}

// Sweep removes every entry older than the expiration window, regardless of
// access pattern, and persists the result. Expected to run once per process
// lifetime, not per query.
func (c *Cache[T]) Sweep() error {
	c.mu.Lock()
	for key, entry := range c.entries {
		if !c.valid(entry) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	return c.Persist()
}

// Persist writes the full cache state to disk, creating the cache directory
// if needed.
func (c *Cache[T]) Persist() error {
	c.mu.RLock()
	data, err := json.Marshal(c.entries)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding cache %s: %w", c.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir for %s: %w", c.path, err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache %s: %w", c.path, err)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[T]) valid(entry Entry[T]) bool {
	age := c.now().Unix() - entry.Timestamp
	return age < int64(c.ttl/time.Second)
}
