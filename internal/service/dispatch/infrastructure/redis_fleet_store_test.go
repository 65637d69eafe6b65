package infrastructure

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-delivery/internal/service/dispatch/domain"
)

func newStore(t *testing.T) (*RedisFleetStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisFleetStore(rdb), mr
}

func TestFleetStoreRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	at := time.Unix(1_760_000_000, 0)

	require.NoError(t, store.UpdateLocation(ctx, "s1", domain.Point{Lat: 10.77, Lng: 106.70}, at))
	require.NoError(t, store.UpdateLocation(ctx, "s2", domain.Point{Lat: 10.78, Lng: 106.71}, at))
	require.NoError(t, store.SetOnline(ctx, "s2", false, at.Add(time.Minute)))

	got, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	sort.Slice(got, func(i, j int) bool { return got[i].ShipperID < got[j].ShipperID })

	assert.Equal(t, "s1", got[0].ShipperID)
	assert.InDelta(t, 10.77, got[0].Lat, 1e-9)
	assert.InDelta(t, 106.70, got[0].Lng, 1e-9)
	assert.True(t, got[0].IsOnline)
	assert.Equal(t, at.Unix(), got[0].LastSeenAt.Unix())

	assert.False(t, got[1].IsOnline)
	assert.Equal(t, at.Add(time.Minute).Unix(), got[1].LastSeenAt.Unix())
}

func TestFleetStoreSkipsMalformedRecords(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	mr.HSet("courier:broken", "latitude", "north", "longitude", "1", "is_online", "1")
	mr.HSet("courier:legacy", "latitude", "1.5", "longitude", "2.5", "is_online", "true")
	require.NoError(t, mr.Set("unrelated", "x"))

	got, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "legacy", got[0].ShipperID)
	assert.True(t, got[0].IsOnline)
	assert.True(t, got[0].LastSeenAt.IsZero())
}

func TestFleetStoreEmpty(t *testing.T) {
	store, _ := newStore(t)
	got, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
