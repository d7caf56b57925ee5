package domain

import "time"

// DataUsageMetrics accumulates per-day request counters. Counters reset when
// the stored date no longer matches today.
type DataUsageMetrics struct {
	Date          string                `json:"date"` // YYYY-MM-DD
	RequestCount  int                   `json:"request_count"`
	BytesUsed     int64                 `json:"bytes_used"`
	MinBytes      int64                 `json:"min_bytes"`
	MaxBytes      int64                 `json:"max_bytes"`
	ByNetworkKind map[NetworkKind]int64 `json:"by_network_kind"`
	ByHour        [24]int               `json:"by_hour"`
}

// NewDataUsageMetrics returns zeroed metrics for the given day.
func NewDataUsageMetrics(now time.Time) *DataUsageMetrics {
	return &DataUsageMetrics{
		Date:          now.Format("2006-01-02"),
		ByNetworkKind: make(map[NetworkKind]int64),
	}
}

// Record adds one completed request to the counters.
func (m *DataUsageMetrics) Record(now time.Time, bytes int64, kind NetworkKind) {
	m.RequestCount++
	m.BytesUsed += bytes
	if m.MinBytes == 0 || bytes < m.MinBytes {
		m.MinBytes = bytes
	}
	if bytes > m.MaxBytes {
		m.MaxBytes = bytes
	}
	m.ByNetworkKind[kind] += bytes
	m.ByHour[now.Hour()]++
}

// Stale reports whether the metrics belong to a previous day.
func (m *DataUsageMetrics) Stale(now time.Time) bool {
	return m.Date != now.Format("2006-01-02")
}

// PeakHour returns the hour of day with the most requests, or -1 when no
// requests were recorded.
func (m *DataUsageMetrics) PeakHour() int {
	peak, peakCount := -1, 0
	for h, c := range m.ByHour {
		if c > peakCount {
			peak, peakCount = h, c
		}
	}
	return peak
}

// AvgBytes returns the mean request size for the day.
func (m *DataUsageMetrics) AvgBytes() int64 {
	if m.RequestCount == 0 {
		return 0
	}
	return m.BytesUsed / int64(m.RequestCount)
}
