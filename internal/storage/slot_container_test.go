package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// exerciseSlot runs the behaviour every backend must share.
func exerciseSlot(t *testing.T, slot Slot) {
	t.Helper()
	ctx := context.Background()

	_, err := slot.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrEmptySlot)

	require.NoError(t, slot.Set(ctx, DefaultSnapshotKey, []byte(`{"rides":[]}`)))
	require.NoError(t, slot.Set(ctx, DefaultSnapshotKey, []byte(`{"rides":[{"id":"r1"}]}`)))
	got, err := slot.Get(ctx, DefaultSnapshotKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rides":[{"id":"r1"}]}`, string(got))

	store := NewSnapshotStore(slot, "", nil)
	store.Save(ctx, sampleDirectory())
	d, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, sampleDirectory(), d)
}

func TestPostgresSlot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("bikerides_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	slot, err := NewPostgresSlot(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = slot.Close() })

	exerciseSlot(t, slot)
}

func TestRedisSlot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	slot := NewRedisSlot(addr, "")
	t.Cleanup(func() { _ = slot.Close() })
	require.NoError(t, slot.Ping(ctx))

	exerciseSlot(t, slot)
}
