package geocode

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/example/bikerides/internal/models"
	"github.com/example/bikerides/internal/observability"
)

// Cache memoizes successful lookups of another Geocoder for a TTL.
// Failures are not cached.
type Cache struct {
	next  Geocoder
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	store map[string]cacheEntry
}

type cacheEntry struct {
	places []models.Place
	ts     time.Time
}

func NewCache(next Geocoder, ttl time.Duration) *Cache {
	return &Cache{next: next, ttl: ttl, now: time.Now, store: make(map[string]cacheEntry)}
}

func keyFor(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func (c *Cache) get(k string) ([]models.Place, bool) {
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return nil, false
	}
	return append([]models.Place(nil), e.places...), true
}

func (c *Cache) Search(ctx context.Context, query string) ([]models.Place, error) {
	k := keyFor(query)
	if k == "" {
		return []models.Place{}, nil
	}
	if places, ok := c.get(k); ok {
		observability.GeocodeLookups.WithLabelValues("cached").Inc()
		return places, nil
	}
	places, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.store[k] = cacheEntry{places: append([]models.Place(nil), places...), ts: c.now()}
	c.mu.Unlock()
	return places, nil
}
