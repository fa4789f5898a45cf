package directory

import (
	"math"
	"strings"
	"time"

	"github.com/example/bikerides/internal/models"
)

// Draft is the user-supplied part of a new ride. Numeric fields accept
// numbers or strings; nil numerics take the form defaults.
type Draft struct {
	Title string `json:"title"`

	// StartTime is RFC 3339 or a local "2006-01-02T15:04". Date and Time
	// are used when StartTime is empty.
	StartTime string `json:"start_time"`
	Date      string `json:"date"`
	Time      string `json:"time"`

	Lat *models.Number `json:"lat"`
	Lng *models.Number `json:"lng"`

	Pace     string `json:"pace"`
	BikeType string `json:"bike_type"`

	DistanceKm      *models.Number `json:"distance_km"`
	ElevationM      *models.Number `json:"elevation_m"`
	MaxParticipants *models.Number `json:"max_participants"`

	Notes string `json:"notes"`
}

// Form defaults for fields the draft leaves out.
const (
	DefaultDistanceKm      = 40
	DefaultElevationM      = 500
	DefaultMaxParticipants = 10
)

var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

func parseStart(d Draft, loc *time.Location) (time.Time, bool) {
	raw := strings.TrimSpace(d.StartTime)
	if raw == "" {
		date, clock := strings.TrimSpace(d.Date), strings.TrimSpace(d.Time)
		if date == "" || clock == "" {
			return time.Time{}, false
		}
		raw = date + "T" + clock
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parsePace(s string) (models.Pace, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return models.PaceMedium, true
	case "slow":
		return models.PaceSlow, true
	case "medium":
		return models.PaceMedium, true
	case "fast":
		return models.PaceFast, true
	}
	return "", false
}

func parseBikeType(s string) (models.BikeType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "road":
		return models.BikeRoad, true
	case "gravel":
		return models.BikeGravel, true
	case "mtb":
		return models.BikeMTB, true
	case "city":
		return models.BikeCity, true
	}
	return "", false
}

func numberOr(n *models.Number, def models.Number) models.Number {
	if n == nil {
		return def
	}
	return *n
}

// checkNumber enforces the strict numeric contract: finite and, when
// nonNegative, at least zero.
func checkNumber(field string, n models.Number, nonNegative bool) error {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return &ValidationError{Field: field, Reason: "must be a number"}
	}
	if nonNegative && f < 0 {
		return &ValidationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

func checkCoordinate(field string, v, limit float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Field: field, Reason: "must be a number"}
	}
	if math.Abs(v) > limit {
		return &ValidationError{Field: field, Reason: "out of range"}
	}
	return nil
}

// buildRide validates d and turns it into a ride without id, organizer
// or participants.
func buildRide(d Draft, center models.Coordinate, strict bool, loc *time.Location) (models.Ride, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return models.Ride{}, &ValidationError{Field: "title", Reason: "required"}
	}
	start, ok := parseStart(d, loc)
	if !ok {
		return models.Ride{}, &ValidationError{Field: "start_time", Reason: "required date and time"}
	}
	pace, ok := parsePace(d.Pace)
	if !ok {
		return models.Ride{}, &ValidationError{Field: "pace", Reason: "must be Slow, Medium or Fast"}
	}
	bike, ok := parseBikeType(d.BikeType)
	if !ok {
		return models.Ride{}, &ValidationError{Field: "bike_type", Reason: "must be Road, Gravel, MTB or City"}
	}

	r := models.Ride{
		Title:           title,
		StartTime:       start,
		MeetingPoint:    models.Coordinate{Lat: float64(numberOr(d.Lat, models.Number(center.Lat))), Lng: float64(numberOr(d.Lng, models.Number(center.Lng)))},
		Pace:            pace,
		BikeType:        bike,
		DistanceKm:      numberOr(d.DistanceKm, DefaultDistanceKm),
		ElevationM:      numberOr(d.ElevationM, DefaultElevationM),
		MaxParticipants: numberOr(d.MaxParticipants, DefaultMaxParticipants),
		Notes:           d.Notes,
	}
	// The meeting point must be a real coordinate in both modes.
	if err := checkCoordinate("lat", r.MeetingPoint.Lat, 90); err != nil {
		return models.Ride{}, err
	}
	if err := checkCoordinate("lng", r.MeetingPoint.Lng, 180); err != nil {
		return models.Ride{}, err
	}
	if !strict {
		return r, nil
	}
	checks := []struct {
		field       string
		n           models.Number
		nonNegative bool
	}{
		{"distance_km", r.DistanceKm, true},
		{"elevation_m", r.ElevationM, true},
		{"max_participants", r.MaxParticipants, true},
	}
	for _, c := range checks {
		if err := checkNumber(c.field, c.n, c.nonNegative); err != nil {
			return models.Ride{}, err
		}
	}
	if r.MaxParticipants != models.Number(math.Trunc(float64(r.MaxParticipants))) {
		return models.Ride{}, &ValidationError{Field: "max_participants", Reason: "must be a whole number"}
	}
	return r, nil
}
