package geocode

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/bikerides/internal/models"
	"github.com/example/bikerides/internal/observability"
)

const (
	DefaultDebounce      = 300 * time.Millisecond
	DefaultSearchTimeout = 10 * time.Second
)

// Result is the live result list and the input it answers.
type Result struct {
	Generation uint64         `json:"generation"`
	Query      string         `json:"query"`
	Places     []models.Place `json:"places"`
}

// Debouncer issues a lookup once input has been quiet for the interval.
// Every Input bumps a generation counter; a lookup only commits its
// result if its generation is still current, so responses to superseded
// input are dropped. Lookup failures commit an empty list.
type Debouncer struct {
	geocoder Geocoder
	interval time.Duration
	timeout  time.Duration
	onResult func(Result)
	logger   *slog.Logger

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	latest  Result
	stopped bool

	// deliverMu keeps callbacks in commit order.
	deliverMu sync.Mutex
}

type DebouncerOption func(*Debouncer)

func WithInterval(d time.Duration) DebouncerOption {
	return func(db *Debouncer) { db.interval = d }
}

func WithTimeout(d time.Duration) DebouncerOption {
	return func(db *Debouncer) { db.timeout = d }
}

func WithLogger(l *slog.Logger) DebouncerOption {
	return func(db *Debouncer) { db.logger = l }
}

// NewDebouncer wraps g. onResult, if set, is called with every committed
// result.
func NewDebouncer(g Geocoder, onResult func(Result), opts ...DebouncerOption) *Debouncer {
	d := &Debouncer{
		geocoder: g,
		interval: DefaultDebounce,
		timeout:  DefaultSearchTimeout,
		onResult: onResult,
		logger:   slog.Default(),
		latest:   Result{Places: []models.Place{}},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Input records a new text value, superseding any pending or in-flight
// lookup. Blank input clears the results immediately.
func (d *Debouncer) Input(query string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.gen++
	gen := d.gen
	d.cancelPendingLocked()
	if strings.TrimSpace(query) == "" {
		d.mu.Unlock()
		d.commit(Result{Generation: gen, Query: query, Places: []models.Place{}})
		return
	}
	d.timer = time.AfterFunc(d.interval, func() { d.fire(gen, query) })
	d.mu.Unlock()
}

// Results returns the current live result list.
func (d *Debouncer) Results() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.latest
	r.Places = append([]models.Place{}, r.Places...)
	return r
}

// Stop cancels pending work. Later input is ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	d.cancelPendingLocked()
}

func (d *Debouncer) cancelPendingLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer) fire(gen uint64, query string) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	places, err := d.geocoder.Search(ctx, query)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		observability.GeocodeLookups.WithLabelValues("stale").Inc()
		return
	}
	if err != nil {
		observability.GeocodeLookups.WithLabelValues("failed").Inc()
		d.logger.Warn("geocode lookup failed", "query", query, "error", err)
		places = []models.Place{}
	} else {
		observability.GeocodeLookups.WithLabelValues("ok").Inc()
	}
	if places == nil {
		places = []models.Place{}
	}
	d.commit(Result{Generation: gen, Query: query, Places: places})
}

func (d *Debouncer) commit(r Result) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	if r.Generation != d.gen {
		d.mu.Unlock()
		observability.GeocodeLookups.WithLabelValues("stale").Inc()
		d.logger.Debug("dropping stale geocode result", "query", r.Query, "generation", r.Generation)
		return
	}
	d.latest = r
	d.mu.Unlock()

	if d.onResult != nil {
		d.onResult(Result{Generation: r.Generation, Query: r.Query, Places: append([]models.Place{}, r.Places...)})
	}
}
