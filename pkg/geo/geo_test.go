package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vaishnaviprints/printlogic/pkg/geo"
)

func TestDistanceZeroForIdenticalPoints(t *testing.T) {
	assert.InDelta(t, 0.0, geo.DistanceKm(12.9716, 77.5946, 12.9716, 77.5946), 1e-9)
}

func TestDistanceSymmetric(t *testing.T) {
	d1 := geo.DistanceKm(12.9716, 77.5946, 13.0358, 77.5970)
	d2 := geo.DistanceKm(13.0358, 77.5970, 12.9716, 77.5946)
	assert.InDelta(t, d1, d2, 1e-9)
}

func TestDistanceBangaloreFixedPoints(t *testing.T) {
	// MG Road to Hebbal, roughly 7 km apart.
	d := geo.DistanceKm(12.9716, 77.5946, 13.0358, 77.5970)
	assert.Greater(t, d, 7.0)
	assert.Less(t, d, 7.5)
}

func TestDistanceShortHop(t *testing.T) {
	d := geo.DistanceKm(12.9716, 77.5946, 12.9717, 77.5946)
	assert.Less(t, d, 0.05)
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 1.23, geo.Round2(1.234))
	assert.Equal(t, 1.24, geo.Round2(1.235))
	assert.Equal(t, -1.24, geo.Round2(-1.235))
	assert.Equal(t, 100.0, geo.Round2(99.999))
}
