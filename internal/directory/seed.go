package directory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/bikerides/internal/models"
)

const day = 24 * time.Hour

// DefaultSeed is the example set a fresh install starts with.
func DefaultSeed(now time.Time, user User, newID func() string) []models.Ride {
	going := func() []models.Participant {
		return []models.Participant{{UserID: user.ID, Name: user.Name, Status: models.ParticipantGoing}}
	}
	return []models.Ride{
		{
			ID:              newID(),
			OrganizerID:     user.ID,
			Title:           "Giro Lago di Como",
			StartTime:       now.Add(day),
			MeetingPoint:    models.Coordinate{Lat: 45.809, Lng: 9.085},
			Pace:            models.PaceMedium,
			BikeType:        models.BikeRoad,
			DistanceKm:      80,
			ElevationM:      1100,
			MaxParticipants: 12,
			Notes:           "Caffè a Bellagio. Casco obbligatorio.",
			Status:          models.RideScheduled,
			Participants:    going(),
			Messages:        []models.Message{{ID: newID(), Author: user.Name, Body: "Portate mantellina!", CreatedAt: now}},
		},
		{
			ID:              newID(),
			OrganizerID:     user.ID,
			Title:           "Gravel Parco Sud",
			StartTime:       now.Add(2 * day),
			MeetingPoint:    models.Coordinate{Lat: 45.43, Lng: 9.12},
			Pace:            models.PaceSlow,
			BikeType:        models.BikeGravel,
			DistanceKm:      55,
			ElevationM:      300,
			MaxParticipants: 8,
			Notes:           "Terreno facile, adatto a tutti.",
			Status:          models.RideScheduled,
			Participants:    going(),
			Messages:        []models.Message{},
		},
	}
}

type seedFile struct {
	Rides []seedRide `yaml:"rides"`
}

type seedRide struct {
	models.Ride `yaml:",inline"`
	// StartIn places the ride relative to load time, e.g. "36h".
	StartIn time.Duration `yaml:"start_in"`
}

// SeedFromFile returns a seed function reading rides from a YAML file.
// Missing ids, organizer and status are filled in at load time.
func SeedFromFile(path string) (func(now time.Time, user User, newID func() string) []models.Ride, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for i, r := range f.Rides {
		if r.Title == "" {
			return nil, fmt.Errorf("seed ride %d: title is required", i)
		}
		if r.StartTime.IsZero() && r.StartIn == 0 {
			return nil, fmt.Errorf("seed ride %d (%s): start_time or start_in is required", i, r.Title)
		}
	}
	return func(now time.Time, user User, newID func() string) []models.Ride {
		out := make([]models.Ride, 0, len(f.Rides))
		for _, sr := range f.Rides {
			r := sr.Ride.Clone()
			if r.ID == "" {
				r.ID = newID()
			}
			if r.OrganizerID == "" {
				r.OrganizerID = user.ID
			}
			if r.Status == "" {
				r.Status = models.RideScheduled
			}
			if r.Pace == "" {
				r.Pace = models.PaceMedium
			}
			if r.BikeType == "" {
				r.BikeType = models.BikeRoad
			}
			if sr.StartIn != 0 {
				r.StartTime = now.Add(sr.StartIn)
			}
			for j := range r.Messages {
				if r.Messages[j].ID == "" {
					r.Messages[j].ID = newID()
				}
				if r.Messages[j].CreatedAt.IsZero() {
					r.Messages[j].CreatedAt = now
				}
			}
			out = append(out, r)
		}
		return out
	}, nil
}
