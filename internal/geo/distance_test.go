package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceIdentity(t *testing.T) {
	points := []Coordinate{
		{Latitude: 0, Longitude: 0},
		{Latitude: 40.7128, Longitude: -74.0060},
		{Latitude: 1.3000, Longitude: 103.8000},
		{Latitude: -89.9, Longitude: 179.9},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, Distance(p, p))
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	b := Coordinate{Latitude: 1.3000, Longitude: 103.8000}
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-6)
}

func TestDistanceOneDegreeAtEquator(t *testing.T) {
	a := Coordinate{Latitude: 0, Longitude: 0}
	b := Coordinate{Latitude: 0, Longitude: 1}
	d := Distance(a, b)
	// 1 degree of longitude at the equator is about 111.32 km.
	assert.InEpsilon(t, 111320.0, d, 0.01)
}

func TestDistanceVeryClosePoints(t *testing.T) {
	a := Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	b := Coordinate{Latitude: 40.7129, Longitude: -74.0060}
	d := Distance(a, b)
	assert.Greater(t, d, 0.0)
	assert.Less(t, d, 20.0)
}

func TestDistanceClassroomScenario(t *testing.T) {
	anchor := Coordinate{Latitude: 1.3000, Longitude: 103.8000}
	north := Coordinate{Latitude: 1.3050, Longitude: 103.8000}
	d := Distance(anchor, north)
	// 0.005 degrees of latitude is roughly 555m.
	assert.InDelta(t, 555.0, d, 10.0)
}

func TestDistanceAlwaysFinite(t *testing.T) {
	// Nearly antipodal points are the classic Vincenty non-convergence
	// case; the fallback chain must still produce a finite result.
	a := Coordinate{Latitude: 0, Longitude: 0}
	b := Coordinate{Latitude: 0.5, Longitude: 179.7}
	d := Distance(a, b)
	assert.False(t, math.IsNaN(d))
	assert.False(t, math.IsInf(d, 0))
	assert.Greater(t, d, 19000000.0) // over 19,000 km apart
}

func TestVincentyAgreesWithHaversine(t *testing.T) {
	a := Coordinate{Latitude: 48.8566, Longitude: 2.3522}
	b := Coordinate{Latitude: 51.5074, Longitude: -0.1278}
	v, ok := vincenty(a, b)
	assert.True(t, ok)
	h := haversine(a, b)
	// The ellipsoidal and spherical models agree within ~0.5% at this range.
	assert.InEpsilon(t, h, v, 0.005)
}

func TestEquirectangularShortRange(t *testing.T) {
	a := Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	b := Coordinate{Latitude: 40.7130, Longitude: -74.0062}
	assert.InDelta(t, haversine(a, b), equirectangular(a, b), 1.0)
}

func TestParseCoordinate(t *testing.T) {
	t.Run("numbers", func(t *testing.T) {
		c, err := ParseCoordinate(1.3, 103.8, 25.0)
		assert.NoError(t, err)
		assert.Equal(t, 1.3, c.Latitude)
		assert.Equal(t, 103.8, c.Longitude)
		assert.Equal(t, 25.0, c.AccuracyMeters)
	})

	t.Run("numeric strings", func(t *testing.T) {
		c, err := ParseCoordinate("40.7128", "-74.0060", "10")
		assert.NoError(t, err)
		assert.Equal(t, 40.7128, c.Latitude)
		assert.Equal(t, -74.0060, c.Longitude)
	})

	t.Run("nil accuracy defaults to zero", func(t *testing.T) {
		c, err := ParseCoordinate(0.0, 0.0, nil)
		assert.NoError(t, err)
		assert.Equal(t, 0.0, c.AccuracyMeters)
	})

	t.Run("non-numeric rejected", func(t *testing.T) {
		_, err := ParseCoordinate("here", 103.8, nil)
		assert.Error(t, err)
	})

	t.Run("missing rejected", func(t *testing.T) {
		_, err := ParseCoordinate(nil, 103.8, nil)
		assert.Error(t, err)
	})

	t.Run("latitude out of range", func(t *testing.T) {
		_, err := ParseCoordinate(91.0, 0.0, nil)
		assert.Error(t, err)
	})

	t.Run("longitude out of range", func(t *testing.T) {
		_, err := ParseCoordinate(0.0, -180.5, nil)
		assert.Error(t, err)
	})

	t.Run("negative accuracy rejected", func(t *testing.T) {
		_, err := ParseCoordinate(0.0, 0.0, -5.0)
		assert.Error(t, err)
	})
}
