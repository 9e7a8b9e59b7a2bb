// Package cache stores computed statistics keyed by query and data generation.
//
// Every mutation of tasks or products bumps the generation, so keys built
// from an older generation simply stop being read and expire on their own.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// StatisticsCache is the storage behind the statistics service
type StatisticsCache interface {
	// Get decodes a cached value into dst and reports whether it was found
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Generation(ctx context.Context) (int64, error)
	// Invalidate bumps the generation
	Invalidate(ctx context.Context) error
	Close() error
}

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

type memoryCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	generation int64
	entries    map[string]memoryEntry
	now        func() time.Time
}

// NewMemory returns a process-local cache used when no redis address is configured
func NewMemory(ttl time.Duration) StatisticsCache {
	return &memoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *memoryCache) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{raw: raw, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Generation(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *memoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.generation++
	// entries of older generations are unreachable
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Close() error { return nil }

type nopCache struct{}

// NewNop returns a cache that never hits
func NewNop() StatisticsCache { return nopCache{} }

func (nopCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (nopCache) Set(context.Context, string, interface{}) error { return nil }
func (nopCache) Generation(context.Context) (int64, error) { return 0, nil }
func (nopCache) Invalidate(context.Context) error { return nil }
func (nopCache) Close() error { return nil }
