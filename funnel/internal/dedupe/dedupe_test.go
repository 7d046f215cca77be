package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := map[string]Store{
		"memory": NewMemory(time.Hour),
		"redis":  NewRedis(client, time.Hour),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := "evt_0123456789abcdef0123456789abcdef_1767225600000"

			seen, err := store.Seen(ctx, id)
			require.NoError(t, err)
			assert.False(t, seen)

			require.NoError(t, store.Mark(ctx, id))
			require.NoError(t, store.Mark(ctx, id), "marking twice is harmless")

			seen, err = store.Seen(ctx, id)
			require.NoError(t, err)
			assert.True(t, seen)
		})
	}
}

func TestRedis_Expires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	store := NewRedis(client, time.Minute)
	require.NoError(t, store.Mark(ctx, "evt_a"))
	mr.FastForward(2 * time.Minute)

	seen, err := store.Seen(ctx, "evt_a")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Mark(ctx, "evt_a"))
	now = now.Add(2 * time.Minute)

	seen, err := m.Seen(ctx, "evt_a")
	require.NoError(t, err)
	assert.False(t, seen)
}
