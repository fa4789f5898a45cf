package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bikerides/internal/models"
)

type failingSlot struct{ sets int }

func (f *failingSlot) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (f *failingSlot) Set(ctx context.Context, key string, value []byte) error {
	f.sets++
	return errors.New("quota exceeded")
}

func sampleDirectory() models.Directory {
	start := time.Date(2026, 5, 10, 8, 30, 0, 0, time.UTC)
	return models.Directory{Rides: []models.Ride{
		{
			ID:              "r1",
			OrganizerID:     "u_demo",
			Title:           "Giro Lago di Como",
			StartTime:       start,
			MeetingPoint:    models.Coordinate{Lat: 45.809, Lng: 9.085},
			Pace:            models.PaceMedium,
			BikeType:        models.BikeRoad,
			DistanceKm:      80,
			ElevationM:      1100,
			MaxParticipants: 12,
			Notes:           "Caffè a Bellagio.",
			Status:          models.RideScheduled,
			Participants:    []models.Participant{{UserID: "u_demo", Name: "Ciclista Demo", Status: models.ParticipantGoing}},
			Messages:        []models.Message{{ID: "m1", Author: "Ciclista Demo", Body: "Portate mantellina!", CreatedAt: start.Add(-time.Hour)}},
		},
		{
			ID:              "r2",
			OrganizerID:     "u_demo",
			Title:           "Gravel Parco Sud",
			StartTime:       start.Add(24 * time.Hour),
			MeetingPoint:    models.Coordinate{Lat: 45.43, Lng: 9.12},
			Pace:            models.PaceSlow,
			BikeType:        models.BikeGravel,
			DistanceKm:      55,
			ElevationM:      300,
			MaxParticipants: 8,
			Status:          models.RideScheduled,
			Participants:    []models.Participant{},
			Messages:        []models.Message{},
		},
	}}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(NewMemorySlot(), "", nil)

	_, ok := store.Load(ctx)
	require.False(t, ok, "empty slot loads as absent")

	want := sampleDirectory()
	store.Save(ctx, want)

	got, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestSnapshotOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(NewMemorySlot(), "k", nil)
	store.Save(ctx, sampleDirectory())
	store.Save(ctx, models.Directory{})

	got, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Empty(t, got.Rides)
}

func TestSnapshotCorruptionIsAbsence(t *testing.T) {
	ctx := context.Background()
	for name, payload := range map[string]string{
		"garbage":    "{not json",
		"null":       "null",
		"blank":      "   ",
		"wrong type": `{"rides": "nope"}`,
	} {
		t.Run(name, func(t *testing.T) {
			slot := NewMemorySlot()
			require.NoError(t, slot.Set(ctx, DefaultSnapshotKey, []byte(payload)))
			_, ok := NewSnapshotStore(slot, "", nil).Load(ctx)
			assert.False(t, ok)
		})
	}
}

func TestSnapshotPreservesNaNAsNull(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot()
	store := NewSnapshotStore(slot, "", nil)

	d := sampleDirectory()
	d.Rides[0].DistanceKm = models.NaN()
	store.Save(ctx, d)

	raw, err := slot.Get(ctx, DefaultSnapshotKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"distance_km":null`)

	got, ok := store.Load(ctx)
	require.True(t, ok)
	assert.True(t, got.Rides[0].DistanceKm.IsNaN())
}

func TestSnapshotFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	slot := &failingSlot{}
	store := NewSnapshotStore(slot, "", nil)

	assert.NotPanics(t, func() { store.Save(ctx, sampleDirectory()) })
	assert.Equal(t, 1, slot.sets)

	_, ok := store.Load(ctx)
	assert.False(t, ok)
}

func TestFileSlot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	slot, err := NewFileSlot(filepath.Join(dir, "data"))
	require.NoError(t, err)

	_, err = slot.Get(ctx, "bikerides.mvp.v1")
	assert.ErrorIs(t, err, ErrEmptySlot)

	require.NoError(t, slot.Set(ctx, "bikerides.mvp.v1", []byte(`{"rides":[]}`)))
	require.NoError(t, slot.Set(ctx, "bikerides.mvp.v1", []byte(`{"rides":[1]}`)))
	b, err := slot.Get(ctx, "bikerides.mvp.v1")
	require.NoError(t, err)
	assert.Equal(t, `{"rides":[1]}`, string(b))

	entries, err := os.ReadDir(filepath.Join(dir, "data"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileSlotKeyIsSanitized(t *testing.T) {
	slot := &FileSlot{Dir: "/tmp/x"}
	assert.Equal(t, filepath.Join("/tmp/x", ".._etc_passwd.json"), slot.path("../etc/passwd"))
}

func TestMemorySlotCopies(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot()
	v := []byte("abc")
	require.NoError(t, slot.Set(ctx, "k", v))
	v[0] = 'z'
	got, err := slot.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
