// Package cache implements the search result cache. The cache is a dumb
// keyed store: validity (TTL expiry and region similarity) is checked by the
// orchestrator, not here.
package cache

import (
	"context"
	"errors"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

// ErrCacheMiss is returned when a key is not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Eviction bounds. When the store exceeds maxEntries, only the
// retainEntries most recently produced results are kept.
const (
	maxEntries    = 50
	retainEntries = 30
)

// ResultCache stores recent search results keyed by normalized criteria.
type ResultCache interface {
	// Store inserts a result under its normalized criteria key.
	Store(ctx context.Context, result *domain.SearchResult) error

	// Lookup retrieves a result by key; ErrCacheMiss when absent.
	Lookup(ctx context.Context, key domain.CriteriaKey) (*domain.SearchResult, error)

	// Delete removes a result by key.
	Delete(ctx context.Context, key domain.CriteriaKey) error

	// Entries returns a snapshot of all stored results, used by the
	// orchestrator for similarity-based invalidation scans.
	Entries(ctx context.Context) ([]*domain.SearchResult, error)

	// Size returns the number of stored results.
	Size(ctx context.Context) (int, error)

	// Close releases any backing connections.
	Close() error
}
