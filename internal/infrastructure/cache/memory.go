package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pricelens/catalog/internal/domain"
)

// sweepEvery is the number of writes between two purges of expired entries
const sweepEvery = 256

type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

// MemoryCache is a thread-safe in-memory cache with per-entry TTL
type MemoryCache[V any] struct {
	data   map[string]cacheItem[V]
	writes int
	mutex  sync.RWMutex
	now    func() time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache[V any]() *MemoryCache[V] {
	return &MemoryCache[V]{
		data: make(map[string]cacheItem[V]),
		now:  time.Now,
	}
}

// Get retrieves a value; expired entries report ErrCacheMiss
func (c *MemoryCache[V]) Get(ctx context.Context, key string) (V, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists || c.now().After(item.expiration) {
		var zero V
		return zero, domain.ErrCacheMiss
	}
	return item.value, nil
}

// Set stores a value with TTL
func (c *MemoryCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cacheItem[V]{value: value, expiration: c.now().Add(ttl)}

	c.writes++
	if c.writes%sweepEvery == 0 {
		c.purgeExpired()
	}
	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache[V]) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Size returns the number of stored entries, expired ones included until the next purge
func (c *MemoryCache[V]) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes every entry
func (c *MemoryCache[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]cacheItem[V])
}

// purgeExpired must be called with the write lock held
func (c *MemoryCache[V]) purgeExpired() {
	now := c.now()
	for key, item := range c.data {
		if now.After(item.expiration) {
			delete(c.data, key)
		}
	}
}
