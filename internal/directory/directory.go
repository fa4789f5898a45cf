package directory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/bikerides/internal/models"
	"github.com/example/bikerides/internal/observability"
)

// User is the identity acting on the directory.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultUser is the single local identity of the prototype.
var DefaultUser = User{ID: "u_demo", Name: "Ciclista Demo"}

// DefaultCenter is Milan, the fallback map center and meeting point.
var DefaultCenter = models.Coordinate{Lat: 45.4642, Lng: 9.19}

// Store persists whole directory snapshots. storage.SnapshotStore
// satisfies it.
type Store interface {
	Load(ctx context.Context) (models.Directory, bool)
	Save(ctx context.Context, d models.Directory)
}

// Sink receives one event per applied mutation. Sinks run on a single
// background goroutine in mutation order, never on the caller's path.
type Sink interface {
	Publish(ctx context.Context, ev models.Event)
}

type Options struct {
	Store  Store
	User   User
	Center models.Coordinate
	// Seed builds the initial rides when the store has no snapshot.
	Seed func(now time.Time, user User, newID func() string) []models.Ride
	// StrictNumbers rejects non-numeric or negative numeric draft fields
	// instead of storing them as NaN.
	StrictNumbers bool
	Location      *time.Location
	Now           func() time.Time
	NewID         func() string
	Sinks         []Sink
	Logger        *slog.Logger
}

// EventBuffer is how many events may wait for slow sinks before new
// ones are dropped.
const EventBuffer = 256

// Directory owns the ride collection. Mutations are serialized and each
// successful one is followed by a full snapshot save; snapshots are
// written in mutation order without blocking readers.
type Directory struct {
	mu     sync.RWMutex
	saveMu sync.Mutex
	rides  []models.Ride

	events    chan models.Event
	sinksDone chan struct{}
	closed    bool
	closeOnce sync.Once

	store  Store
	user   User
	center models.Coordinate
	strict bool
	loc    *time.Location
	now    func() time.Time
	newID  func() string
	sinks  []Sink
	logger *slog.Logger
}

func New(ctx context.Context, opts Options) *Directory {
	d := &Directory{
		store:  opts.Store,
		user:   opts.User,
		center: opts.Center,
		strict: opts.StrictNumbers,
		loc:    opts.Location,
		now:    opts.Now,
		newID:  opts.NewID,
		sinks:  opts.Sinks,
		logger: opts.Logger,
	}
	if d.user.ID == "" {
		d.user = DefaultUser
	}
	if d.center == (models.Coordinate{}) {
		d.center = DefaultCenter
	}
	if d.loc == nil {
		d.loc = time.Local
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if len(d.sinks) > 0 {
		d.events = make(chan models.Event, EventBuffer)
		d.sinksDone = make(chan struct{})
		go d.runSinks()
	}

	if d.store != nil {
		if snap, ok := d.store.Load(ctx); ok {
			d.rides = normalize(snap.Rides)
			d.logger.Info("directory loaded", "rides", len(d.rides))
			observability.RidesTotal.Set(float64(len(d.rides)))
			return d
		}
	}
	seed := opts.Seed
	if seed == nil {
		seed = DefaultSeed
	}
	d.rides = normalize(seed(d.now(), d.user, d.newID))
	d.logger.Info("directory seeded", "rides", len(d.rides))
	observability.RidesTotal.Set(float64(len(d.rides)))
	if d.store != nil {
		d.store.Save(ctx, d.snapshotLocked())
	}
	return d
}

// normalize restores the participant uniqueness invariant on data that
// did not come through the mutation operations.
func normalize(in []models.Ride) []models.Ride {
	out := make([]models.Ride, 0, len(in))
	for _, r := range in {
		r = r.Clone()
		seen := make(map[string]bool, len(r.Participants))
		kept := r.Participants[:0]
		for _, p := range r.Participants {
			if seen[p.UserID] {
				continue
			}
			seen[p.UserID] = true
			kept = append(kept, p)
		}
		r.Participants = kept
		out = append(out, r)
	}
	return out
}

func (d *Directory) User() User { return d.user }

func (d *Directory) Center() models.Coordinate { return d.center }

// Snapshot returns a deep copy of the whole directory.
func (d *Directory) Snapshot() models.Directory {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked()
}

// Rides returns a deep copy of the rides in insertion order.
func (d *Directory) Rides() []models.Ride {
	return d.Snapshot().Rides
}

func (d *Directory) Ride(id string) (models.Ride, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := d.indexLocked(id)
	if i < 0 {
		return models.Ride{}, &NotFoundError{RideID: id}
	}
	return d.rides[i].Clone(), nil
}

func (d *Directory) snapshotLocked() models.Directory {
	return models.Directory{Rides: d.rides}.Clone()
}

func (d *Directory) indexLocked(id string) int {
	for i := range d.rides {
		if d.rides[i].ID == id {
			return i
		}
	}
	return -1
}

// commitLocked hands the current state to the store. It must be called
// with mu held and releases it; the save runs after readers are let back in.
func (d *Directory) commitLocked(ctx context.Context) {
	snap := d.snapshotLocked()
	observability.RidesTotal.Set(float64(len(d.rides)))
	d.saveMu.Lock()
	d.mu.Unlock()
	defer d.saveMu.Unlock()
	if d.store != nil {
		d.store.Save(context.WithoutCancel(ctx), snap)
	}
}

// enqueueLocked hands ev to the sink goroutine without blocking. It must
// be called with mu held so events keep mutation order.
func (d *Directory) enqueueLocked(ev models.Event) {
	if d.events == nil || d.closed {
		return
	}
	select {
	case d.events <- ev:
	default:
		observability.EventsPublished.WithLabelValues("directory", "dropped").Inc()
		d.logger.Warn("event buffer full, dropping event", "kind", ev.Kind, "ride_id", ev.RideID)
	}
}

func (d *Directory) runSinks() {
	defer close(d.sinksDone)
	for ev := range d.events {
		for _, s := range d.sinks {
			s.Publish(context.Background(), ev)
		}
	}
}

// Close stops accepting events and waits until the sinks have received
// every queued one. Mutations after Close still apply but emit nothing.
func (d *Directory) Close() {
	d.closeOnce.Do(func() {
		if d.events == nil {
			return
		}
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()
		<-d.sinksDone
	})
}

func record(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case IsValidation(err):
		outcome = "invalid"
	case IsNotFound(err):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	observability.MutationsTotal.WithLabelValues(op, outcome).Inc()
}

// CreateRide validates the draft and appends a new scheduled ride
// organized by the directory's user, who is its first participant.
func (d *Directory) CreateRide(ctx context.Context, draft Draft) (ride models.Ride, err error) {
	defer func() { record("create", err) }()

	r, err := buildRide(draft, d.center, d.strict, d.loc)
	if err != nil {
		return models.Ride{}, err
	}
	r.OrganizerID = d.user.ID
	r.Status = models.RideScheduled
	r.Participants = []models.Participant{{UserID: d.user.ID, Name: d.user.Name, Status: models.ParticipantGoing}}
	r.Messages = []models.Message{}

	d.mu.Lock()
	r.ID = d.newID()
	d.rides = append(d.rides, r.Clone())
	d.enqueueLocked(models.Event{Kind: models.EventRideCreated, RideID: r.ID, UserID: d.user.ID, MeetingPoint: r.MeetingPoint, At: d.now()})
	d.commitLocked(ctx)

	d.logger.Info("ride created", "ride_id", r.ID, "title", r.Title)
	return r.Clone(), nil
}

// JoinRide adds userID as going. Joining twice is a no-op. The
// participant cap is advisory and never blocks a join.
func (d *Directory) JoinRide(ctx context.Context, rideID, userID, userName string) (ride models.Ride, err error) {
	defer func() { record("join", err) }()

	d.mu.Lock()
	i := d.indexLocked(rideID)
	if i < 0 {
		d.mu.Unlock()
		return models.Ride{}, &NotFoundError{RideID: rideID}
	}
	r := &d.rides[i]
	changed := !r.HasParticipant(userID)
	if changed {
		r.Participants = append(r.Participants, models.Participant{UserID: userID, Name: userName, Status: models.ParticipantGoing})
		d.enqueueLocked(models.Event{Kind: models.EventRideJoined, RideID: rideID, UserID: userID, MeetingPoint: r.MeetingPoint, At: d.now()})
	}
	out := r.Clone()
	d.commitLocked(ctx)
	return out, nil
}

// LeaveRide removes userID from the ride. Leaving when absent is a no-op.
func (d *Directory) LeaveRide(ctx context.Context, rideID, userID string) (ride models.Ride, err error) {
	defer func() { record("leave", err) }()

	d.mu.Lock()
	i := d.indexLocked(rideID)
	if i < 0 {
		d.mu.Unlock()
		return models.Ride{}, &NotFoundError{RideID: rideID}
	}
	r := &d.rides[i]
	kept := make([]models.Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.UserID != userID {
			kept = append(kept, p)
		}
	}
	if len(kept) != len(r.Participants) {
		d.enqueueLocked(models.Event{Kind: models.EventRideLeft, RideID: rideID, UserID: userID, MeetingPoint: r.MeetingPoint, At: d.now()})
	}
	r.Participants = kept
	out := r.Clone()
	d.commitLocked(ctx)
	return out, nil
}

// PostMessage appends a chat message to the ride. Blank bodies are
// rejected with a ValidationError and leave the ride untouched.
func (d *Directory) PostMessage(ctx context.Context, rideID, author, body string) (msg models.Message, err error) {
	defer func() { record("message", err) }()

	if strings.TrimSpace(body) == "" {
		d.mu.RLock()
		found := d.indexLocked(rideID) >= 0
		d.mu.RUnlock()
		if !found {
			return models.Message{}, &NotFoundError{RideID: rideID}
		}
		return models.Message{}, &ValidationError{Field: "body", Reason: "must not be blank"}
	}

	d.mu.Lock()
	i := d.indexLocked(rideID)
	if i < 0 {
		d.mu.Unlock()
		return models.Message{}, &NotFoundError{RideID: rideID}
	}
	m := models.Message{ID: d.newID(), Author: author, Body: body, CreatedAt: d.now()}
	d.rides[i].Messages = append(d.rides[i].Messages, m)
	d.enqueueLocked(models.Event{Kind: models.EventMessagePosted, RideID: rideID, MessageID: m.ID, MeetingPoint: d.rides[i].MeetingPoint, At: m.CreatedAt})
	d.commitLocked(ctx)
	return m, nil
}
