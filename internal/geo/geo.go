// Package geo provides distance and region similarity math used by the
// search orchestrator, cache and bandwidth governor.
package geo

import "math"

const earthRadiusKm = 6371.0

// distanceNormKm is the distance at which two region centers are considered
// completely dissimilar. Preserved from production tuning.
const distanceNormKm = 5.0

// HaversineKm returns the great-circle distance in kilometers between two
// coordinates.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// HaversineMeters returns the great-circle distance in meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineKm(lat1, lon1, lat2, lon2) * 1000.0
}

// SpanSimilarity compares two viewport spans (degrees) and returns a value
// in [0,1], 1 meaning identical spans.
func SpanSimilarity(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 1
	}
	maxSpan := math.Max(math.Abs(a), math.Abs(b))
	if maxSpan == 0 {
		return 1
	}
	sim := 1 - math.Abs(a-b)/maxSpan
	if sim < 0 {
		return 0
	}
	return sim
}

// RegionSimilarity scores how interchangeable two viewports are for search
// purposes, in [0,1]. Center distance dominates (70%), with span agreement
// contributing the rest. Centers 5 km or more apart score zero on the
// distance component.
func RegionSimilarity(lat1, lon1, latSpan1, lonSpan1, lat2, lon2, latSpan2, lonSpan2 float64) float64 {
	distKm := HaversineKm(lat1, lon1, lat2, lon2)

	distScore := 1 - distKm/distanceNormKm
	if distScore < 0 {
		distScore = 0
	}

	spanScore := (SpanSimilarity(latSpan1, latSpan2) + SpanSimilarity(lonSpan1, lonSpan2)) / 2

	return 0.7*distScore + 0.3*spanScore
}
