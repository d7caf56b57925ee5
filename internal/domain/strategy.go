package domain

import "time"

// RequestPriority orders entries in the governor's request queue.
type RequestPriority int

const (
	PriorityLow RequestPriority = iota
	PriorityNormal
	PriorityHigh
)

// BandwidthTier buckets observed throughput for adaptive update frequency.
type BandwidthTier string

const (
	TierHigh   BandwidthTier = "high"
	TierMedium BandwidthTier = "medium"
	TierLow    BandwidthTier = "low"
)

// BandwidthStrategy is a named bundle of concurrency, timing and size
// parameters. Exactly one strategy is current at any time; transitions are
// driven only by network condition changes.
type BandwidthStrategy struct {
	Name                  string                          `json:"name"`
	MaxConcurrentRequests int                             `json:"max_concurrent_requests"`
	Debounce              time.Duration                   `json:"debounce"`
	RequestTimeout        time.Duration                   `json:"request_timeout"`
	EnableCompression     bool                            `json:"enable_compression"`
	CacheTTL              time.Duration                   `json:"cache_ttl"`
	RequestPriority       RequestPriority                 `json:"request_priority"`
	MaxRequestBytes       int64                           `json:"max_request_bytes"`
	MaxResponseBytes      int64                           `json:"max_response_bytes"`
	DailyByteLimit        int64                           `json:"daily_byte_limit,omitempty"` // 0 = unlimited
	MaxRequestsPerMinute  int                             `json:"max_requests_per_minute"`
	MaxBytesPerMinute     int64                           `json:"max_bytes_per_minute"`
	UpdateFrequencyByTier map[BandwidthTier]time.Duration `json:"update_frequency_by_tier"`

	// SignificanceScale raises the bar for "significant" region changes on
	// constrained networks: fewer, larger-grain searches.
	SignificanceScale float64 `json:"significance_scale"`
}

// UpdateFrequency returns the update interval for a bandwidth tier, falling
// back to the medium tier when the tier is not configured.
func (s *BandwidthStrategy) UpdateFrequency(tier BandwidthTier) time.Duration {
	if d, ok := s.UpdateFrequencyByTier[tier]; ok {
		return d
	}
	return s.UpdateFrequencyByTier[TierMedium]
}
