package cache

import (
	"context"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

// NoOpCache is a cache implementation that stores nothing, for when caching
// is disabled. Every lookup misses.
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) Store(_ context.Context, _ *domain.SearchResult) error {
	return nil
}

func (c *NoOpCache) Lookup(_ context.Context, _ domain.CriteriaKey) (*domain.SearchResult, error) {
	return nil, ErrCacheMiss
}

func (c *NoOpCache) Delete(_ context.Context, _ domain.CriteriaKey) error {
	return nil
}

func (c *NoOpCache) Entries(_ context.Context) ([]*domain.SearchResult, error) {
	return nil, nil
}

func (c *NoOpCache) Size(_ context.Context) (int, error) {
	return 0, nil
}

func (c *NoOpCache) Close() error {
	return nil
}
