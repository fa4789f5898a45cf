package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bikerides/internal/models"
)

type incr struct {
	key, field string
	by         int64
}

// fakeUpdater implements RedisUpdater for tests
type fakeUpdater struct {
	failGeo  int // number of times to fail GeoAdd before succeeding
	failIncr int // number of times to fail HIncrBy before succeeding
	geoCalls int
	incCalls int
	geo      []*redis.GeoLocation
	incrs    []incr
}

func (f *fakeUpdater) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	f.geoCalls++
	if f.geoCalls <= f.failGeo {
		return errors.New("geo fail")
	}
	f.geo = append(f.geo, loc)
	return nil
}

func (f *fakeUpdater) HIncrBy(ctx context.Context, key, field string, by int64) error {
	f.incCalls++
	if f.incCalls <= f.failIncr {
		return errors.New("hincrby fail")
	}
	f.incrs = append(f.incrs, incr{key, field, by})
	return nil
}

func created() models.Event {
	return models.Event{Kind: models.EventRideCreated, RideID: "r1", MeetingPoint: models.Coordinate{Lat: 45.43, Lng: 9.12}}
}

func TestApplyEventIndexesNewRide(t *testing.T) {
	f := &fakeUpdater{}
	require.NoError(t, applyEventWithRetry(context.Background(), f, "rides_geo", created(), 3, time.Millisecond))

	require.Len(t, f.geo, 1)
	assert.Equal(t, "r1", f.geo[0].Name)
	assert.Equal(t, 45.43, f.geo[0].Latitude)
	assert.Equal(t, 9.12, f.geo[0].Longitude)
	assert.Equal(t, []incr{
		{"ride:activity:r1", "ride_created", 1},
		{"ride:activity:r1", "participants", 1},
	}, f.incrs)
}

func TestApplyEventCountsActivity(t *testing.T) {
	f := &fakeUpdater{}
	ctx := context.Background()
	require.NoError(t, applyEventWithRetry(ctx, f, "rides_geo", models.Event{Kind: models.EventRideLeft, RideID: "r2"}, 3, time.Millisecond))
	require.NoError(t, applyEventWithRetry(ctx, f, "rides_geo", models.Event{Kind: models.EventMessagePosted, RideID: "r2"}, 3, time.Millisecond))

	assert.Empty(t, f.geo)
	assert.Equal(t, []incr{
		{"ride:activity:r2", "ride_left", 1},
		{"ride:activity:r2", "participants", -1},
		{"ride:activity:r2", "message_posted", 1},
	}, f.incrs)
}

func TestApplyEventWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{failGeo: 1, failIncr: 1}
	start := time.Now()
	require.NoError(t, applyEventWithRetry(context.Background(), f, "rides_geo", created(), 3, 10*time.Millisecond))
	assert.GreaterOrEqual(t, f.geoCalls, 2)
	assert.GreaterOrEqual(t, f.incCalls, 2)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestApplyEventWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{failGeo: 5}
	err := applyEventWithRetry(context.Background(), f, "rides_geo", created(), 3, 5*time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 3, f.geoCalls)
	assert.Zero(t, f.incCalls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := retry(ctx, 5, time.Hour, func() error { calls++; return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
