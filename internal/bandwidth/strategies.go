package bandwidth

import (
	"time"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

// Strategy names
const (
	StrategyWifiOptimal = "wifi_optimal"
	StrategyCellular5G  = "cellular_5g"
	StrategyCellular4G  = "cellular_4g"
	StrategyCellular3G  = "cellular_3g"
	StrategyCellular2G  = "cellular_2g"
	StrategyDataSaver   = "data_saver"
)

var strategies = map[string]domain.BandwidthStrategy{
	StrategyWifiOptimal: {
		Name:                  StrategyWifiOptimal,
		MaxConcurrentRequests: 6,
		Debounce:              300 * time.Millisecond,
		RequestTimeout:        10 * time.Second,
		EnableCompression:     false,
		CacheTTL:              5 * time.Minute,
		RequestPriority:       domain.PriorityHigh,
		MaxRequestBytes:       1 << 20,
		MaxResponseBytes:      5 << 20,
		MaxRequestsPerMinute:  30,
		MaxBytesPerMinute:     10 << 20,
		SignificanceScale:     1.0,
		UpdateFrequencyByTier: map[domain.BandwidthTier]time.Duration{
			domain.TierHigh:   2 * time.Second,
			domain.TierMedium: 5 * time.Second,
			domain.TierLow:    15 * time.Second,
		},
	},
	StrategyCellular5G: {
		Name:                  StrategyCellular5G,
		MaxConcurrentRequests: 4,
		Debounce:              500 * time.Millisecond,
		RequestTimeout:        12 * time.Second,
		EnableCompression:     true,
		CacheTTL:              8 * time.Minute,
		RequestPriority:       domain.PriorityHigh,
		MaxRequestBytes:       512 << 10,
		MaxResponseBytes:      3 << 20,
		MaxRequestsPerMinute:  20,
		MaxBytesPerMinute:     6 << 20,
		SignificanceScale:     1.0,
		UpdateFrequencyByTier: map[domain.BandwidthTier]time.Duration{
			domain.TierHigh:   3 * time.Second,
			domain.TierMedium: 8 * time.Second,
			domain.TierLow:    20 * time.Second,
		},
	},
	StrategyCellular4G: {
		Name:                  StrategyCellular4G,
		MaxConcurrentRequests: 3,
		Debounce:              800 * time.Millisecond,
		RequestTimeout:        15 * time.Second,
		EnableCompression:     true,
		CacheTTL:              10 * time.Minute,
		RequestPriority:       domain.PriorityNormal,
		MaxRequestBytes:       256 << 10,
		MaxResponseBytes:      2 << 20,
		MaxRequestsPerMinute:  12,
		MaxBytesPerMinute:     3 << 20,
		SignificanceScale:     1.25,
		UpdateFrequencyByTier: map[domain.BandwidthTier]time.Duration{
			domain.TierHigh:   5 * time.Second,
			domain.TierMedium: 12 * time.Second,
			domain.TierLow:    30 * time.Second,
		},
	},
	StrategyCellular3G: {
		Name:                  StrategyCellular3G,
		MaxConcurrentRequests: 2,
		Debounce:              1500 * time.Millisecond,
		RequestTimeout:        20 * time.Second,
		EnableCompression:     true,
		CacheTTL:              15 * time.Minute,
		RequestPriority:       domain.PriorityNormal,
		MaxRequestBytes:       128 << 10,
		MaxResponseBytes:      1 << 20,
		MaxRequestsPerMinute:  6,
		MaxBytesPerMinute:     1 << 20,
		SignificanceScale:     1.5,
		UpdateFrequencyByTier: map[domain.BandwidthTier]time.Duration{
			domain.TierHigh:   10 * time.Second,
			domain.TierMedium: 20 * time.Second,
			domain.TierLow:    45 * time.Second,
		},
	},
	StrategyCellular2G: {
		Name:                  StrategyCellular2G,
		MaxConcurrentRequests: 1,
		Debounce:              3 * time.Second,
		RequestTimeout:        30 * time.Second,
		EnableCompression:     true,
		CacheTTL:              30 * time.Minute,
		RequestPriority:       domain.PriorityLow,
		MaxRequestBytes:       64 << 10,
		MaxResponseBytes:      256 << 10,
		MaxRequestsPerMinute:  4,
		MaxBytesPerMinute:     512 << 10,
		SignificanceScale:     2.0,
		UpdateFrequencyByTier: map[domain.BandwidthTier]time.Duration{
			domain.TierHigh:   20 * time.Second,
			domain.TierMedium: 45 * time.Second,
			domain.TierLow:    2 * time.Minute,
		},
	},
	StrategyDataSaver: {
		Name:                  StrategyDataSaver,
		MaxConcurrentRequests: 1,
		Debounce:              5 * time.Second,
		RequestTimeout:        30 * time.Second,
		EnableCompression:     true,
		CacheTTL:              time.Hour,
		RequestPriority:       domain.PriorityLow,
		MaxRequestBytes:       32 << 10,
		MaxResponseBytes:      128 << 10,
		DailyByteLimit:        5 << 20,
		MaxRequestsPerMinute:  2,
		MaxBytesPerMinute:     256 << 10,
		SignificanceScale:     3.0,
		UpdateFrequencyByTier: map[domain.BandwidthTier]time.Duration{
			domain.TierHigh:   time.Minute,
			domain.TierMedium: 2 * time.Minute,
			domain.TierLow:    5 * time.Minute,
		},
	},
}

// SelectStrategy maps a network condition to a strategy name. Evaluated
// top-to-bottom; an expensive connection forces data_saver regardless of
// generation.
func SelectStrategy(cond domain.NetworkCondition) string {
	if !cond.IsConnected {
		return StrategyDataSaver
	}
	if cond.IsExpensive {
		return StrategyDataSaver
	}

	switch cond.Kind {
	case domain.NetworkWiFi, domain.NetworkWired:
		return StrategyWifiOptimal
	case domain.NetworkCellular:
		switch cond.Generation {
		case domain.Gen5G:
			return StrategyCellular5G
		case domain.Gen4G:
			return StrategyCellular4G
		case domain.Gen3G:
			return StrategyCellular3G
		case domain.Gen2G:
			return StrategyCellular2G
		default:
			return StrategyCellular4G
		}
	default:
		return StrategyDataSaver
	}
}

// StrategyByName returns the named strategy profile, defaulting to
// data_saver for unknown names.
func StrategyByName(name string) domain.BandwidthStrategy {
	if s, ok := strategies[name]; ok {
		return s
	}
	return strategies[StrategyDataSaver]
}
