package geo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAcceptsAtAnchor(t *testing.T) {
	anchor := &Coordinate{Latitude: 1.3000, Longitude: 103.8000}
	claimed := &Coordinate{Latitude: 1.3000, Longitude: 103.8000}

	v := Validate(anchor, claimed, 200)
	assert.True(t, v.Accepted)
	assert.Equal(t, 0.0, v.DistanceMeters)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	anchor := &Coordinate{Latitude: 1.3000, Longitude: 103.8000}
	claimed := &Coordinate{Latitude: 1.3050, Longitude: 103.8000} // ~555m north

	v := Validate(anchor, claimed, 200)
	assert.False(t, v.Accepted)
	assert.InDelta(t, 555.0, v.DistanceMeters, 10.0)
	// The reason must be explainable: it carries both the computed
	// distance and the threshold.
	assert.Contains(t, v.Reason, fmt.Sprintf("%.0fm", v.DistanceMeters))
	assert.Contains(t, v.Reason, "max 200m")
}

func TestValidateAccuracySubtractedNotAdded(t *testing.T) {
	anchor := &Coordinate{Latitude: 1.3000, Longitude: 103.8000}
	claimed := &Coordinate{Latitude: 1.3020, Longitude: 103.8000, AccuracyMeters: 50} // ~222m

	v := Validate(anchor, claimed, 200)
	assert.True(t, v.Accepted, "the accuracy margin should pull the claim inside the fence")
	assert.Less(t, v.EffectiveMeters, v.DistanceMeters)
}

func TestValidateEffectiveDistanceFloorsAtZero(t *testing.T) {
	anchor := &Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	claimed := &Coordinate{Latitude: 40.7129, Longitude: -74.0060, AccuracyMeters: 1000}

	v := Validate(anchor, claimed, 200)
	assert.True(t, v.Accepted)
	assert.Equal(t, 0.0, v.EffectiveMeters)
}

func TestValidateMissingCoordinates(t *testing.T) {
	anchor := &Coordinate{Latitude: 1.3, Longitude: 103.8}

	for _, v := range []Validation{
		Validate(nil, anchor, 200),
		Validate(anchor, nil, 200),
		Validate(nil, nil, 200),
	} {
		assert.False(t, v.Accepted)
		assert.Equal(t, "location data missing", v.Reason)
	}
}
