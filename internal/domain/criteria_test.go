package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCriteriaValidate(t *testing.T) {
	validRegion := SearchRegion{CenterLat: 37.7749, CenterLon: -122.4194, LatSpan: 0.01, LonSpan: 0.01}

	tests := []struct {
		name        string
		criteria    SearchCriteria
		expectedErr error
	}{
		{
			name:     "Valid criteria",
			criteria: SearchCriteria{Query: "pizza", RadiusKm: 5, Region: validRegion},
		},
		{
			name:        "Latitude out of range",
			criteria:    SearchCriteria{RadiusKm: 5, Region: SearchRegion{CenterLat: 91, LatSpan: 0.01}},
			expectedErr: ErrInvalidRegion,
		},
		{
			name:        "Zero spans and radius",
			criteria:    SearchCriteria{RadiusKm: 5, Region: SearchRegion{CenterLat: 37.7749, CenterLon: -122.4194}},
			expectedErr: ErrInvalidRegion,
		},
		{
			name:        "Non-positive radius",
			criteria:    SearchCriteria{RadiusKm: 0, Region: validRegion},
			expectedErr: ErrInvalidRadius,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.criteria.Validate()
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCriteriaKey(t *testing.T) {
	t.Run("Rounds centers to three decimals", func(t *testing.T) {
		a := SearchCriteria{
			Query:    "pizza",
			RadiusKm: 5,
			Region:   SearchRegion{CenterLat: 37.77491, CenterLon: -122.41942, LatSpan: 0.01, LonSpan: 0.01},
		}
		b := SearchCriteria{
			Query:    "pizza",
			RadiusKm: 5,
			Region:   SearchRegion{CenterLat: 37.77513, CenterLon: -122.41938, LatSpan: 0.02, LonSpan: 0.02},
		}

		assert.Equal(t, a.Key(), b.Key())
	})

	t.Run("Normalizes query case and whitespace", func(t *testing.T) {
		a := SearchCriteria{Query: "  Pizza ", Category: "Restaurant", RadiusKm: 5}
		b := SearchCriteria{Query: "pizza", Category: "restaurant", RadiusKm: 5}

		assert.Equal(t, a.Key(), b.Key())
	})

	t.Run("Different radius means different key", func(t *testing.T) {
		a := SearchCriteria{Query: "pizza", RadiusKm: 5}
		b := SearchCriteria{Query: "pizza", RadiusKm: 10}

		assert.NotEqual(t, a.Key(), b.Key())
	})

	t.Run("Stable string identifier", func(t *testing.T) {
		c := SearchCriteria{
			Query:    "Pizza",
			Category: "food",
			RadiusKm: 5,
			Region:   SearchRegion{CenterLat: 37.7749, CenterLon: -122.4194, LatSpan: 0.01, LonSpan: 0.01},
		}

		assert.Equal(t, "37.775:-122.419:5.0:pizza:food", c.Key().String())
	})
}
