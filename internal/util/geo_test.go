package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineZeroDistance(t *testing.T) {
	assert.Zero(t, HaversineMeters(52.52, 13.405, 52.52, 13.405))
}

func TestHaversineKnownDistances(t *testing.T) {
	// One degree of latitude is about 111.2 km.
	d := HaversineMeters(0, 0, 1, 0)
	assert.InDelta(t, 111195, d, 200)

	// Berlin to Paris, roughly 878 km.
	d = HaversineMeters(52.520008, 13.404954, 48.856613, 2.352222)
	assert.InDelta(t, 878000, d, 5000)
}

func TestHaversineSymmetry(t *testing.T) {
	a := HaversineMeters(52.52, 13.405, 48.8566, 2.3522)
	b := HaversineMeters(48.8566, 2.3522, 52.52, 13.405)
	assert.InDelta(t, a, b, 0.0001)
}
