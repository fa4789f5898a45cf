package query

import (
	"sort"
	"strings"

	"github.com/example/bikerides/internal/geo"
	"github.com/example/bikerides/internal/models"
)

// DefaultRadiusKm is the radius used when the caller sets none.
const DefaultRadiusKm = 60

// Filters selects the visible rides. Empty or "any" BikeType and Pace
// disable those predicates.
type Filters struct {
	Center    models.Coordinate
	RadiusKm  float64
	TextQuery string
	BikeType  string
	Pace      string
}

// VisibleRides returns the rides passing every filter, ordered by start
// time. Rides starting at the same instant keep their input order. The
// input is not modified.
func VisibleRides(rides []models.Ride, f Filters) []models.Ride {
	text := strings.ToLower(f.TextQuery)
	out := make([]models.Ride, 0, len(rides))
	for _, r := range rides {
		if !matchesText(r, text) {
			continue
		}
		if !isAny(f.BikeType) && string(r.BikeType) != f.BikeType {
			continue
		}
		if !isAny(f.Pace) && string(r.Pace) != f.Pace {
			continue
		}
		// Written as a negated <= so NaN distances or radii never match.
		if !(geo.DistanceKm(f.Center, r.MeetingPoint) <= f.RadiusKm) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// Pins projects rides onto map markers.
func Pins(rides []models.Ride) []models.Pin {
	pins := make([]models.Pin, 0, len(rides))
	for _, r := range rides {
		pins = append(pins, models.Pin{ID: r.ID, Lat: r.MeetingPoint.Lat, Lng: r.MeetingPoint.Lng, Title: r.Title})
	}
	return pins
}

func matchesText(r models.Ride, lowered string) bool {
	if lowered == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Title), lowered) ||
		strings.Contains(strings.ToLower(r.Notes), lowered)
}

func isAny(v string) bool {
	return v == "" || strings.EqualFold(v, models.Any)
}
