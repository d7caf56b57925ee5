package domain

import "time"

// ResultSource indicates how a search result was produced.
type ResultSource string

const (
	SourceFresh   ResultSource = "fresh"
	SourceCached  ResultSource = "cached"
	SourcePartial ResultSource = "partial"
)

// Business is a single business returned by the remote search endpoint.
type Business struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Address  string  `json:"address,omitempty"`
	Phone    string  `json:"phone,omitempty"`
	Website  string  `json:"website,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Reviews  int     `json:"reviews,omitempty"`
}

// SearchResult is the outcome of one executed search. Owned by the result
// cache once stored; read-only to consumers.
type SearchResult struct {
	ID           string         `json:"id"`
	Businesses   []Business     `json:"businesses"`
	TotalCount   int            `json:"total_count"`
	Region       SearchRegion   `json:"region"`
	RegionCode   string         `json:"region_code,omitempty"`
	Criteria     SearchCriteria `json:"criteria"`
	ProducedAt   time.Time      `json:"produced_at"`
	Source       ResultSource   `json:"source"`
	Confidence   int            `json:"confidence"`
	ExpiresAt    time.Time      `json:"expires_at"`
	NetworkLabel string         `json:"network_label,omitempty"`
}

// Expired reports whether the result is past its TTL at the given instant.
func (r *SearchResult) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// AsCached returns a shallow copy marked as served from cache.
func (r *SearchResult) AsCached() *SearchResult {
	cp := *r
	cp.Source = SourceCached
	return &cp
}
