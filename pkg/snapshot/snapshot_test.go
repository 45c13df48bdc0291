package snapshot_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storedesk/notifykit/pkg/notification"
	"github.com/storedesk/notifykit/pkg/snapshot"
)

func sample() []notification.Notification {
	return []notification.Notification{
		{
			ID:       "1",
			Type:     notification.TypeExpiry,
			Severity: notification.SeverityCritical,
			Title:    "Yogurt expires today",
			Fields:   map[string]json.RawMessage{"expiryDate": json.RawMessage(`"2026-03-01"`)},
		},
		{ID: "2", Type: notification.TypeLowStock, Severity: notification.SeverityWarning},
	}
}

// testStore runs the behaviour every Store must share.
func testStore(t *testing.T, store snapshot.Store) {
	ctx := context.Background()
	key := "console-" + t.Name()

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := store.Load(ctx, key+"-missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, sample()))

		snap, ok, err := store.Load(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, snap.Notifications, 2)
		assert.Equal(t, notification.ID("1"), snap.Notifications[0].ID)
		assert.Equal(t, notification.SeverityCritical, snap.Notifications[0].Severity)
		assert.False(t, snap.SavedAt.IsZero())

		var expiry string
		require.NoError(t, snap.Notifications[0].Field("expiryDate", &expiry))
		assert.Equal(t, "2026-03-01", expiry)
	})

	t.Run("save empty list", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, nil))
		snap, ok, err := store.Load(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotNil(t, snap.Notifications)
		assert.Empty(t, snap.Notifications)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, sample()))
		require.NoError(t, store.Delete(ctx, key))
		_, ok, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty key", func(t *testing.T) {
		assert.ErrorIs(t, store.Save(ctx, "", sample()), snapshot.ErrEmptyKey)
		_, _, err := store.Load(ctx, "")
		assert.ErrorIs(t, err, snapshot.ErrEmptyKey)
		assert.ErrorIs(t, store.Delete(ctx, ""), snapshot.ErrEmptyKey)
	})
}

func TestMemory(t *testing.T) {
	testStore(t, snapshot.NewMemory())

	t.Run("returned list is a copy", func(t *testing.T) {
		ctx := context.Background()
		m := snapshot.NewMemory()
		list := sample()
		require.NoError(t, m.Save(ctx, "k", list))
		list[0].Title = "mutated"

		snap, _, err := m.Load(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "Yogurt expires today", snap.Notifications[0].Title)
	})
}

func TestSnapshot_Age(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := snapshot.Snapshot{SavedAt: now.Add(-time.Hour)}
	assert.Equal(t, time.Hour, s.Age(now))
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("SNAPSHOT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SNAPSHOT_TEST_REDIS_URL not set")
	}

	client, err := snapshot.ConnectRedis(context.Background(), snapshot.RedisConfig{
		ConnectionURL:  url,
		RetryAttempts:  1,
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, snapshot.Healthcheck(client)(context.Background()))

	store := snapshot.NewRedisStore(client, snapshot.WithKeyPrefix("notifykit:test:"), snapshot.WithTTL(time.Minute))
	t.Cleanup(func() { _ = store.Close() })

	testStore(t, store)
}

func TestConnectRedis_InvalidURL(t *testing.T) {
	_, err := snapshot.ConnectRedis(context.Background(), snapshot.RedisConfig{ConnectionURL: "not a url"})
	assert.ErrorIs(t, err, snapshot.ErrFailedToParseRedisConnString)
}

func TestConnectRedis_NotReady(t *testing.T) {
	_, err := snapshot.ConnectRedis(context.Background(), snapshot.RedisConfig{
		ConnectionURL:  "redis://127.0.0.1:1/0",
		RetryAttempts:  2,
		RetryInterval:  10 * time.Millisecond,
		ConnectTimeout: 2 * time.Second,
	})
	assert.ErrorIs(t, err, snapshot.ErrRedisNotReady)
}
