package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/bikerides/internal/models"
)

// DefaultLocateTimeout bounds a one-shot device location fix.
const DefaultLocateTimeout = 5 * time.Second

// Locator produces the device's current position.
type Locator interface {
	Locate(ctx context.Context) (models.Coordinate, error)
}

// Center is the outcome of ResolveCenter. Fallback is set when the
// coordinate is the configured default rather than a real fix.
type Center struct {
	models.Coordinate
	Fallback bool `json:"fallback"`
}

// ResolveCenter picks the map center: an explicit center wins, else one
// locator call bounded by timeout, else the fallback coordinate. It
// never returns an error.
func ResolveCenter(ctx context.Context, explicit *models.Coordinate, loc Locator, timeout time.Duration, fallback models.Coordinate) Center {
	if explicit != nil {
		return Center{Coordinate: *explicit}
	}
	if loc == nil {
		return Center{Coordinate: fallback, Fallback: true}
	}
	if timeout <= 0 {
		timeout = DefaultLocateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		c   models.Coordinate
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := loc.Locate(ctx)
		ch <- result{c, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return Center{Coordinate: fallback, Fallback: true}
		}
		return Center{Coordinate: r.c}
	case <-ctx.Done():
		return Center{Coordinate: fallback, Fallback: true}
	}
}

// HTTPLocator asks an IP geolocation service for an approximate fix.
// The endpoint must answer with {"latitude": .., "longitude": ..}.
type HTTPLocator struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPLocator(endpoint string) *HTTPLocator {
	return &HTTPLocator{Endpoint: endpoint, Client: &http.Client{Timeout: DefaultLocateTimeout}}
}

func (l *HTTPLocator) Locate(ctx context.Context) (models.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Endpoint, http.NoBody)
	if err != nil {
		return models.Coordinate{}, err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return models.Coordinate{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Coordinate{}, fmt.Errorf("locator status %d", resp.StatusCode)
	}
	var out struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Coordinate{}, err
	}
	if out.Latitude == nil || out.Longitude == nil {
		return models.Coordinate{}, fmt.Errorf("locator: missing coordinates")
	}
	return models.Coordinate{Lat: *out.Latitude, Lng: *out.Longitude}, nil
}
