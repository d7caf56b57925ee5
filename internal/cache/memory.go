package cache

import (
	"context"
	"sort"
	"sync"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

// MemoryCache is the default in-process result cache with recency-based
// eviction. Eviction happens on insert, not on access (not strict LRU).
type MemoryCache struct {
	mu    sync.RWMutex
	items map[domain.CriteriaKey]*domain.SearchResult
}

// NewMemoryCache creates an empty in-memory result cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[domain.CriteriaKey]*domain.SearchResult),
	}
}

// Store inserts the result. When the map grows past maxEntries, only the
// retainEntries most recently produced results survive.
func (c *MemoryCache) Store(_ context.Context, result *domain.SearchResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[result.Criteria.Key()] = result

	if len(c.items) > maxEntries {
		c.evictLocked()
	}

	return nil
}

func (c *MemoryCache) evictLocked() {
	all := make([]*domain.SearchResult, 0, len(c.items))
	for _, r := range c.items {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ProducedAt.After(all[j].ProducedAt)
	})

	kept := make(map[domain.CriteriaKey]*domain.SearchResult, retainEntries)
	for _, r := range all[:retainEntries] {
		kept[r.Criteria.Key()] = r
	}
	c.items = kept
}

// Lookup returns the result for a key, or ErrCacheMiss.
func (c *MemoryCache) Lookup(_ context.Context, key domain.CriteriaKey) (*domain.SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result, ok := c.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}

	return result, nil
}

// Delete removes a key.
func (c *MemoryCache) Delete(_ context.Context, key domain.CriteriaKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// Entries returns a snapshot of all stored results.
func (c *MemoryCache) Entries(_ context.Context) ([]*domain.SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make([]*domain.SearchResult, 0, len(c.items))
	for _, r := range c.items {
		all = append(all, r)
	}

	return all, nil
}

// Size returns the number of stored results.
func (c *MemoryCache) Size(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items), nil
}

// Close is a no-op for the in-memory cache.
func (c *MemoryCache) Close() error {
	return nil
}
