package bandwidth

import "github.com/sadewadee/dynamic-search/internal/domain"

// Throughput thresholds (bytes/sec) for bucketing the connection into
// bandwidth tiers.
const (
	tierHighBytesPerSec   = 500 << 10 // >= 500 KB/s
	tierMediumBytesPerSec = 50 << 10  // >= 50 KB/s
)

const maxThroughputSamples = 50

// throughputEstimator holds a rolling window of observed request throughput
// samples and buckets the connection into a bandwidth tier.
type throughputEstimator struct {
	samples []float64 // bytes/sec, newest last
}

func (t *throughputEstimator) add(bytesPerSec float64) {
	if bytesPerSec <= 0 {
		return
	}
	t.samples = append(t.samples, bytesPerSec)
	if len(t.samples) > maxThroughputSamples {
		t.samples = t.samples[len(t.samples)-maxThroughputSamples:]
	}
}

// tier returns the bandwidth tier for the rolling average, or false when no
// samples exist yet.
func (t *throughputEstimator) tier() (domain.BandwidthTier, bool) {
	if len(t.samples) == 0 {
		return "", false
	}

	var sum float64
	for _, s := range t.samples {
		sum += s
	}
	avg := sum / float64(len(t.samples))

	switch {
	case avg >= tierHighBytesPerSec:
		return domain.TierHigh, true
	case avg >= tierMediumBytesPerSec:
		return domain.TierMedium, true
	default:
		return domain.TierLow, true
	}
}

// defaultTierFor maps a network condition to a tier used before any samples
// have been observed.
func defaultTierFor(cond domain.NetworkCondition) domain.BandwidthTier {
	if !cond.IsConnected {
		return domain.TierLow
	}
	switch cond.Kind {
	case domain.NetworkWiFi, domain.NetworkWired:
		return domain.TierHigh
	case domain.NetworkCellular:
		switch cond.Generation {
		case domain.Gen5G, domain.Gen4G:
			return domain.TierMedium
		default:
			return domain.TierLow
		}
	default:
		return domain.TierLow
	}
}
