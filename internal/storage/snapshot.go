package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/example/bikerides/internal/models"
	"github.com/example/bikerides/internal/observability"
)

// DefaultSnapshotKey is the slot the directory snapshot lives in.
const DefaultSnapshotKey = "bikerides.mvp.v1"

// SnapshotStore loads and saves the whole directory under one key.
// Missing or unreadable snapshots load as absent. Write failures are
// logged and dropped.
type SnapshotStore struct {
	slot   Slot
	key    string
	logger *slog.Logger
}

func NewSnapshotStore(slot Slot, key string, logger *slog.Logger) *SnapshotStore {
	if key == "" {
		key = DefaultSnapshotKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStore{slot: slot, key: key, logger: logger}
}

// Load returns the stored directory, or false when there is none or it
// does not parse.
func (s *SnapshotStore) Load(ctx context.Context) (models.Directory, bool) {
	raw, err := s.slot.Get(ctx, s.key)
	if errors.Is(err, ErrEmptySlot) {
		observability.SnapshotLoads.WithLabelValues("absent").Inc()
		return models.Directory{}, false
	}
	if err != nil {
		observability.SnapshotLoads.WithLabelValues("error").Inc()
		s.logger.Warn("snapshot read failed", "key", s.key, "error", err)
		return models.Directory{}, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		observability.SnapshotLoads.WithLabelValues("absent").Inc()
		return models.Directory{}, false
	}
	var d models.Directory
	if err := json.Unmarshal(raw, &d); err != nil {
		observability.SnapshotLoads.WithLabelValues("corrupt").Inc()
		s.logger.Warn("snapshot corrupt, ignoring", "key", s.key, "error", err)
		return models.Directory{}, false
	}
	for i := range d.Rides {
		d.Rides[i] = d.Rides[i].Clone()
	}
	if d.Rides == nil {
		d.Rides = []models.Ride{}
	}
	observability.SnapshotLoads.WithLabelValues("ok").Inc()
	return d, true
}

// Save overwrites the slot with the full directory.
func (s *SnapshotStore) Save(ctx context.Context, d models.Directory) {
	if err := s.write(ctx, d); err != nil {
		observability.SnapshotWrites.WithLabelValues("failed").Inc()
		s.logger.Warn("snapshot write failed", "key", s.key, "error", err)
		return
	}
	observability.SnapshotWrites.WithLabelValues("ok").Inc()
}

func (s *SnapshotStore) write(ctx context.Context, d models.Directory) error {
	if d.Rides == nil {
		d.Rides = []models.Ride{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.slot.Set(ctx, s.key, b)
}
