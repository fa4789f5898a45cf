package geocode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bikerides/internal/models"
)

// gatedGeocoder blocks each lookup until the test releases its query.
type gatedGeocoder struct {
	mu       sync.Mutex
	calls    []string
	gates    map[string]chan struct{}
	canceled map[string]bool
	fail     map[string]bool
}

func newGatedGeocoder() *gatedGeocoder {
	return &gatedGeocoder{gates: map[string]chan struct{}{}, canceled: map[string]bool{}, fail: map[string]bool{}}
}

func (g *gatedGeocoder) gate(q string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[q]
	if !ok {
		ch = make(chan struct{})
		g.gates[q] = ch
	}
	return ch
}

func (g *gatedGeocoder) Search(ctx context.Context, q string) ([]models.Place, error) {
	g.mu.Lock()
	g.calls = append(g.calls, q)
	fail := g.fail[q]
	g.mu.Unlock()
	select {
	case <-g.gate(q):
	case <-ctx.Done():
		g.mu.Lock()
		g.canceled[q] = true
		g.mu.Unlock()
		return nil, ctx.Err()
	}
	if fail {
		return nil, errors.New("network down")
	}
	return []models.Place{{Label: q, Lat: 45, Lng: 9}}, nil
}

func (g *gatedGeocoder) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *gatedGeocoder) wasCanceled(q string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canceled[q]
}

type resultLog struct {
	mu  sync.Mutex
	all []Result
}

func (l *resultLog) add(r Result) {
	l.mu.Lock()
	l.all = append(l.all, r)
	l.mu.Unlock()
}

func (l *resultLog) queries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, r := range l.all {
		out = append(out, r.Query)
	}
	return out
}

const interval = 30 * time.Millisecond

func TestDebounceCoalescesRapidInput(t *testing.T) {
	g := newGatedGeocoder()
	close(g.gate("Milano"))
	var log resultLog
	d := NewDebouncer(g, log.add, WithInterval(interval))
	defer d.Stop()

	for _, q := range []string{"M", "Mi", "Mil", "Milano"} {
		d.Input(q)
		time.Sleep(interval / 5)
	}

	require.Eventually(t, func() bool { return d.Results().Query == "Milano" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Milano"}, g.Calls())
	assert.Equal(t, []string{"Milano"}, log.queries())
	assert.Equal(t, []models.Place{{Label: "Milano", Lat: 45, Lng: 9}}, d.Results().Places)
}

func TestDebounceDropsSupersededResponse(t *testing.T) {
	g := newGatedGeocoder()
	var log resultLog
	d := NewDebouncer(g, log.add, WithInterval(interval))
	defer d.Stop()

	d.Input("Como")
	require.Eventually(t, func() bool { return len(g.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	d.Input("Bergamo")
	close(g.gate("Bergamo"))
	require.Eventually(t, func() bool { return d.Results().Query == "Bergamo" }, time.Second, 5*time.Millisecond)

	close(g.gate("Como"))
	time.Sleep(3 * interval)
	assert.Equal(t, "Bergamo", d.Results().Query)
	assert.Equal(t, []string{"Bergamo"}, log.queries())
	assert.True(t, g.wasCanceled("Como"))
}

func TestDebounceFailSoft(t *testing.T) {
	g := newGatedGeocoder()
	g.fail["Lecco"] = true
	close(g.gate("Lecco"))
	var log resultLog
	d := NewDebouncer(g, log.add, WithInterval(interval))
	defer d.Stop()

	d.Input("Lecco")
	require.Eventually(t, func() bool { return len(log.queries()) == 1 }, time.Second, 5*time.Millisecond)
	r := d.Results()
	assert.Equal(t, "Lecco", r.Query)
	assert.NotNil(t, r.Places)
	assert.Empty(t, r.Places)
}

func TestDebounceBlankInputClearsWithoutLookup(t *testing.T) {
	g := newGatedGeocoder()
	var log resultLog
	d := NewDebouncer(g, log.add, WithInterval(interval))
	defer d.Stop()

	d.Input("Pavia")
	d.Input("  ")
	time.Sleep(3 * interval)
	assert.Empty(t, g.Calls())
	assert.Equal(t, []string{"  "}, log.queries())
	assert.Empty(t, d.Results().Places)
}

func TestDebounceStopIgnoresLaterInput(t *testing.T) {
	g := newGatedGeocoder()
	d := NewDebouncer(g, nil, WithInterval(interval))
	d.Input("Monza")
	d.Stop()
	d.Input("Lodi")
	time.Sleep(3 * interval)
	assert.Empty(t, g.Calls())
	assert.Zero(t, d.Results().Generation)
}
