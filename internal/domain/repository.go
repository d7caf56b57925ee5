package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SearchRecord is one row in the durable search history log.
type SearchRecord struct {
	ID           uuid.UUID    `json:"id"`
	SearchID     string       `json:"search_id"`
	Query        string       `json:"query,omitempty"`
	Category     string       `json:"category,omitempty"`
	CenterLat    float64      `json:"center_lat"`
	CenterLon    float64      `json:"center_lon"`
	RadiusKm     float64      `json:"radius_km"`
	RegionCode   string       `json:"region_code,omitempty"`
	ResultCount  int          `json:"result_count"`
	Source       ResultSource `json:"source"`
	Confidence   int          `json:"confidence"`
	NetworkLabel string       `json:"network_label,omitempty"`
	DurationMs   int64        `json:"duration_ms"`
	CreatedAt    time.Time    `json:"created_at"`
}

// HistoryListParams filter and page a history listing.
type HistoryListParams struct {
	Query  string
	Source ResultSource
	Since  time.Time
	Limit  int
	Offset int
}

// HistoryStats summarizes the recorded searches.
type HistoryStats struct {
	Total      int     `json:"total"`
	Today      int     `json:"today"`
	CacheHits  int     `json:"cache_hits"`
	AvgLatency float64 `json:"avg_latency_ms"`
}

// HistoryRepository defines the interface for search history persistence.
type HistoryRepository interface {
	Record(ctx context.Context, rec *SearchRecord) error
	List(ctx context.Context, params HistoryListParams) ([]*SearchRecord, int, error)
	Stats(ctx context.Context) (*HistoryStats, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Preference store namespaces. The store is a plain namespace -> JSON blob
// mapping.
const (
	NamespacePreferences = "preferences"
	NamespaceLastContext = "last_context"
)

// PreferenceRepository defines the interface for persisted preferences and
// last-known search context, stored as JSON blobs per namespace.
type PreferenceRepository interface {
	GetPreferences(ctx context.Context) (*Preferences, error)
	SetPreferences(ctx context.Context, prefs *Preferences) error
	GetContext(ctx context.Context, key string) ([]byte, error)
	SetContext(ctx context.Context, key string, blob []byte) error
}
