package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/service/dispatch/domain"
)

type fakeFleet struct {
	mu         sync.Mutex
	candidates map[string]domain.Candidate
	err        error
}

func newFakeFleet(cs ...domain.Candidate) *fakeFleet {
	f := &fakeFleet{candidates: map[string]domain.Candidate{}}
	for _, c := range cs {
		f.candidates[c.ShipperID] = c
	}
	return f
}

func (f *fakeFleet) Snapshot(context.Context) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Candidate, 0, len(f.candidates))
	for _, c := range f.candidates {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeFleet) UpdateLocation(_ context.Context, id string, p domain.Point, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates[id] = domain.Candidate{ShipperID: id, Lat: p.Lat, Lng: p.Lng, IsOnline: true, LastSeenAt: at}
	return nil
}

func (f *fakeFleet) SetOnline(_ context.Context, id string, online bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.candidates[id]
	c.IsOnline, c.LastSeenAt = online, at
	f.candidates[id] = c
	return nil
}

var origin = domain.Point{Lat: 10.7769, Lng: 106.7009}

func newService(fleet domain.FleetStore, stale time.Duration, now time.Time) *DispatchService {
	s := NewDispatchService(fleet, noop.NewTracerProvider().Tracer("test"), stale)
	s.now = func() time.Time { return now }
	return s
}

func TestFindNearbyDropsStaleCouriers(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	fleet := newFakeFleet(
		domain.Candidate{ShipperID: "fresh", Lat: 10.78, Lng: 106.70, IsOnline: true, LastSeenAt: now.Add(-30 * time.Second)},
		domain.Candidate{ShipperID: "stale", Lat: 10.777, Lng: 106.70, IsOnline: true, LastSeenAt: now.Add(-10 * time.Minute)},
		domain.Candidate{ShipperID: "unknown", Lat: 10.777, Lng: 106.70, IsOnline: true},
	)
	svc := newService(fleet, 2*time.Minute, now)

	matches, err := svc.FindNearby(context.Background(), origin, 5000)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "fresh", matches[0].ShipperID)
}

func TestFindNearbyWithoutStaleness(t *testing.T) {
	fleet := newFakeFleet(domain.Candidate{ShipperID: "old", Lat: 10.777, Lng: 106.70, IsOnline: true})
	svc := newService(fleet, 0, time.Now())

	matches, err := svc.FindNearby(context.Background(), origin, 5000)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestFindNearbyRejectsBadInput(t *testing.T) {
	svc := newService(newFakeFleet(), time.Minute, time.Now())

	_, err := svc.FindNearby(context.Background(), origin, -1)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
	_, err = svc.FindNearby(context.Background(), domain.Point{Lat: 120}, 10)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestFindNearbyPropagatesStoreError(t *testing.T) {
	fleet := newFakeFleet()
	fleet.err = errors.New("redis down")
	svc := newService(fleet, time.Minute, time.Now())

	_, err := svc.FindNearby(context.Background(), origin, 1000)
	assert.EqualError(t, err, "redis down")
}

func TestReportLocationThenOffline(t *testing.T) {
	now := time.Now()
	fleet := newFakeFleet()
	svc := newService(fleet, time.Minute, now)
	ctx := context.Background()

	require.NoError(t, svc.ReportLocation(ctx, "s1", domain.Point{Lat: 10.777, Lng: 106.701}))
	matches, err := svc.FindNearby(ctx, origin, 1000)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.NoError(t, svc.GoOffline(ctx, "s1"))
	matches, err = svc.FindNearby(ctx, origin, 1000)
	require.NoError(t, err)
	assert.Empty(t, matches)

	assert.True(t, errors.Is(svc.ReportLocation(ctx, "", origin), apperr.ErrInvalidInput))
}
