package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Common criteria errors
var (
	ErrInvalidRegion   = errors.New("invalid search region")
	ErrInvalidRadius   = errors.New("radius must be positive")
	ErrInvalidCriteria = errors.New("invalid search criteria")
)

// SearchCriteria describes one business search: free-text query, category,
// radius, sort order and the viewport/location it applies to.
type SearchCriteria struct {
	Query     string            `json:"query,omitempty"`
	Category  string            `json:"category,omitempty"`
	RadiusKm  float64           `json:"radius_km"`
	SortBy    string            `json:"sort_by,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
	Location  Location          `json:"location"`
	Region    SearchRegion      `json:"region"`
	CreatedAt time.Time         `json:"created_at"`
}

// Validate checks the criteria for contract errors. Malformed criteria fail
// fast instead of producing a garbage cache key.
func (c *SearchCriteria) Validate() error {
	if !c.Region.IsValid() {
		return ErrInvalidRegion
	}
	if c.RadiusKm <= 0 {
		return ErrInvalidRadius
	}
	return nil
}

// CriteriaKey is the structural cache/dedup key derived from criteria.
// The region center is rounded to three decimal places (~111 m) so that
// semantically identical requests collide. Comparable by value.
type CriteriaKey struct {
	Lat      float64
	Lon      float64
	RadiusKm float64
	Query    string
	Category string
}

// Key derives the normalized CriteriaKey.
func (c *SearchCriteria) Key() CriteriaKey {
	return CriteriaKey{
		Lat:      roundCoord(c.Region.CenterLat),
		Lon:      roundCoord(c.Region.CenterLon),
		RadiusKm: c.RadiusKm,
		Query:    strings.ToLower(strings.TrimSpace(c.Query)),
		Category: strings.ToLower(strings.TrimSpace(c.Category)),
	}
}

// String renders the key as a stable identifier, used as search id and as
// the storage key in external caches.
func (k CriteriaKey) String() string {
	return fmt.Sprintf("%.3f:%.3f:%.1f:%s:%s", k.Lat, k.Lon, k.RadiusKm, k.Query, k.Category)
}

func roundCoord(v float64) float64 {
	return math.Round(v*1000) / 1000
}
