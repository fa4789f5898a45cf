package models

import (
	"time"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Pace string

const (
	PaceSlow   Pace = "Slow"
	PaceMedium Pace = "Medium"
	PaceFast   Pace = "Fast"
)

type BikeType string

const (
	BikeRoad   BikeType = "Road"
	BikeGravel BikeType = "Gravel"
	BikeMTB    BikeType = "MTB"
	BikeCity   BikeType = "City"
)

// Any is the filter value that disables a pace or bike type filter.
const Any = "any"

type RideStatus string

const (
	RideScheduled RideStatus = "scheduled"
	RideCanceled  RideStatus = "canceled"
	RideCompleted RideStatus = "completed"
)

type ParticipantStatus string

const ParticipantGoing ParticipantStatus = "going"

type Participant struct {
	UserID string            `json:"user_id" yaml:"user_id"`
	Name   string            `json:"name" yaml:"name"`
	Status ParticipantStatus `json:"status" yaml:"status"`
}

type Message struct {
	ID        string    `json:"id" yaml:"id"`
	Author    string    `json:"author" yaml:"author"`
	Body      string    `json:"body" yaml:"body"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type Ride struct {
	ID              string        `json:"id" yaml:"id"`
	OrganizerID     string        `json:"organizer_id" yaml:"organizer_id"`
	Title           string        `json:"title" yaml:"title"`
	StartTime       time.Time     `json:"start_time" yaml:"start_time"`
	MeetingPoint    Coordinate    `json:"meeting_point" yaml:"meeting_point"`
	Pace            Pace          `json:"pace" yaml:"pace"`
	BikeType        BikeType      `json:"bike_type" yaml:"bike_type"`
	DistanceKm      Number        `json:"distance_km" yaml:"distance_km"`
	ElevationM      Number        `json:"elevation_m" yaml:"elevation_m"`
	MaxParticipants Number        `json:"max_participants" yaml:"max_participants"`
	Notes           string        `json:"notes" yaml:"notes"`
	Status          RideStatus    `json:"status" yaml:"status"`
	Participants    []Participant `json:"participants" yaml:"participants"`
	Messages        []Message     `json:"messages" yaml:"messages"`
}

// HasParticipant reports whether userID is in the participant list.
func (r *Ride) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// PlacesLeft is the advisory capacity remainder. Negative means overbooked.
func (r *Ride) PlacesLeft() int {
	return int(r.MaxParticipants) - len(r.Participants)
}

// Clone returns a deep copy so callers never alias directory state.
func (r Ride) Clone() Ride {
	out := r
	out.Participants = append([]Participant(nil), r.Participants...)
	out.Messages = append([]Message(nil), r.Messages...)
	if out.Participants == nil {
		out.Participants = []Participant{}
	}
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return out
}

// Directory is the persisted root aggregate.
type Directory struct {
	Rides []Ride `json:"rides" yaml:"rides"`
}

func (d Directory) Clone() Directory {
	out := Directory{Rides: make([]Ride, 0, len(d.Rides))}
	for _, r := range d.Rides {
		out.Rides = append(out.Rides, r.Clone())
	}
	return out
}

// Pin is the map projection of a visible ride.
type Pin struct {
	ID    string  `json:"id"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Title string  `json:"title"`
}

// Place is a geocoding candidate.
type Place struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

type EventKind string

const (
	EventRideCreated   EventKind = "ride_created"
	EventRideJoined    EventKind = "ride_joined"
	EventRideLeft      EventKind = "ride_left"
	EventMessagePosted EventKind = "message_posted"
)

// Event describes one applied directory mutation.
type Event struct {
	Kind         EventKind  `json:"kind"`
	RideID       string     `json:"ride_id"`
	UserID       string     `json:"user_id,omitempty"`
	MessageID    string     `json:"message_id,omitempty"`
	MeetingPoint Coordinate `json:"meeting_point"`
	At           time.Time  `json:"at"`
}
