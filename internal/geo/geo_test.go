package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/bikerides/internal/models"
)

func TestDistanceZero(t *testing.T) {
	p := models.Coordinate{Lat: 45.4642, Lng: 9.19}
	assert.Equal(t, 0.0, DistanceKm(p, p))
}

func TestDistanceAntipodalIsFinite(t *testing.T) {
	d := DistanceKm(models.Coordinate{Lat: 0, Lng: 0}, models.Coordinate{Lat: 0, Lng: 180})
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 1e-6)

	d = DistanceKm(models.Coordinate{Lat: 90, Lng: 0}, models.Coordinate{Lat: -90, Lng: 0})
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 1e-6)
}

func TestDistanceMilanToLakeComo(t *testing.T) {
	milan := models.Coordinate{Lat: 45.4642, Lng: 9.19}
	como := models.Coordinate{Lat: 45.809, Lng: 9.085}
	parcoSud := models.Coordinate{Lat: 45.430, Lng: 9.120}

	assert.InDelta(t, 39, DistanceKm(milan, como), 4)
	assert.InDelta(t, 7, DistanceKm(milan, parcoSud), 2)
}

func TestDistanceSymmetric(t *testing.T) {
	a := models.Coordinate{Lat: 48.8566, Lng: 2.3522}
	b := models.Coordinate{Lat: 51.5074, Lng: -0.1278}
	assert.InDelta(t, DistanceKm(a, b), DistanceKm(b, a), 1e-9)
	assert.InDelta(t, 343.5, DistanceKm(a, b), 2)
}
