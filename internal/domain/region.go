package domain

import (
	"time"

	olc "github.com/google/open-location-code/go"

	"github.com/sadewadee/dynamic-search/internal/geo"
)

// SearchRegion describes a map viewport: a center with latitude/longitude
// spans, optionally constrained to a radius. Immutable once constructed.
type SearchRegion struct {
	CenterLat  float64   `json:"center_lat"`
	CenterLon  float64   `json:"center_lon"`
	LatSpan    float64   `json:"lat_span"`
	LonSpan    float64   `json:"lon_span"`
	RadiusKm   float64   `json:"radius_km,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// IsValid returns true if the region has usable coordinates and spans.
func (r SearchRegion) IsValid() bool {
	if r.CenterLat < -90 || r.CenterLat > 90 {
		return false
	}
	if r.CenterLon < -180 || r.CenterLon > 180 {
		return false
	}
	if r.LatSpan < 0 || r.LonSpan < 0 {
		return false
	}
	return r.LatSpan > 0 || r.LonSpan > 0 || r.RadiusKm > 0
}

// PlusCode returns the Open Location Code of the region center, used as a
// human-readable region identifier in results and history records.
func (r SearchRegion) PlusCode() string {
	return olc.Encode(r.CenterLat, r.CenterLon, 8)
}

// DistanceKmTo returns the center-to-center distance to another region.
func (r SearchRegion) DistanceKmTo(other SearchRegion) float64 {
	return geo.HaversineKm(r.CenterLat, r.CenterLon, other.CenterLat, other.CenterLon)
}

// SimilarityTo scores how interchangeable two viewports are, in [0,1].
func (r SearchRegion) SimilarityTo(other SearchRegion) float64 {
	return geo.RegionSimilarity(
		r.CenterLat, r.CenterLon, r.LatSpan, r.LonSpan,
		other.CenterLat, other.CenterLon, other.LatSpan, other.LonSpan,
	)
}

// RegionChangeTrigger identifies what caused a region change event.
type RegionChangeTrigger string

const (
	TriggerViewportPan    RegionChangeTrigger = "viewport_pan"
	TriggerViewportZoom   RegionChangeTrigger = "viewport_zoom"
	TriggerLocationUpdate RegionChangeTrigger = "location_update"
	TriggerManual         RegionChangeTrigger = "manual"
)

// Location is a device coordinate pushed by the location provider. It may
// differ from the map's visual center.
type Location struct {
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	ObservedAt     time.Time `json:"observed_at"`
}
