package search

import (
	"time"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

// Confidence penalty thresholds. Preserved from production tuning; the
// tests pin these values.
const (
	slowResponse     = 3 * time.Second
	verySlowResponse = 5 * time.Second

	sparseResultCount = 3

	poorAccuracyMeters     = 500.0
	veryPoorAccuracyMeters = 1000.0
)

// Confidence derives a heuristic 0-100 freshness/trust score for a search
// outcome. Pure function of its inputs: starts at 100 and subtracts
// penalties for slow responses, weak cellular tiers, sparse results and
// inaccurate device location. This is a quality signal surfaced to the UI,
// not a correctness guarantee.
func Confidence(criteria *domain.SearchCriteria, businesses []domain.Business, responseTime time.Duration, network domain.NetworkCondition) int {
	score := 100

	switch {
	case responseTime > verySlowResponse:
		score -= 20
	case responseTime > slowResponse:
		score -= 10
	}

	if network.Kind == domain.NetworkCellular {
		switch network.Generation {
		case domain.Gen2G:
			score -= 30
		case domain.Gen3G:
			score -= 15
		}
	}

	switch {
	case len(businesses) == 0:
		score -= 20
	case len(businesses) < sparseResultCount:
		score -= 15
	}

	switch {
	case criteria.Location.AccuracyMeters > veryPoorAccuracyMeters:
		score -= 20
	case criteria.Location.AccuracyMeters > poorAccuracyMeters:
		score -= 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
