package geo

import (
	"math"

	"github.com/example/bikerides/internal/models"
)

// EarthRadiusKm is the mean radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between a and b in
// kilometers (haversine). The asin argument is clamped to [0, 1] so
// rounding on identical or near-antipodal points never yields NaN.
func DistanceKm(a, b models.Coordinate) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*sinLng*sinLng
	return 2 * EarthRadiusKm * math.Asin(clamp01(math.Sqrt(h)))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
