package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"nexus-delivery/internal/pkg/apperr"
)

type fakeSource struct {
	mu        sync.Mutex
	pending   []int64
	fail      map[int64]bool
	confirmed []int64
	minAge    time.Duration
	limit     int
}

func (f *fakeSource) Pending(_ context.Context, olderThan time.Duration, limit int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minAge, f.limit = olderThan, limit
	return append([]int64(nil), f.pending...), nil
}

func (f *fakeSource) Confirm(_ context.Context, code int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[code] {
		return false, apperr.Gateway("gateway down")
	}
	f.confirmed = append(f.confirmed, code)
	return code%2 == 0, nil
}

func TestTickConfirmsEverySource(t *testing.T) {
	orders := &fakeSource{pending: []int64{2, 3, 4}, fail: map[int64]bool{3: true}}
	deposits := &fakeSource{pending: []int64{10}}
	r := NewReconciler(map[string]PendingSource{"orders": orders, "deposits": deposits},
		noop.NewTracerProvider().Tracer("test"), ReconcilerConfig{MinAge: time.Minute, Batch: 20})

	n := r.Tick(context.Background())

	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{2, 4}, orders.confirmed)
	assert.Equal(t, []int64{10}, deposits.confirmed)
	assert.Equal(t, time.Minute, orders.minAge)
	assert.Equal(t, 20, orders.limit)
}

func TestTickSurvivesListFailure(t *testing.T) {
	broken := SourceFunc{
		PendingFn: func(context.Context, time.Duration, int) ([]int64, error) {
			return nil, apperr.ErrInternal
		},
		ConfirmFn: func(context.Context, int64) (bool, error) {
			t.Fatal("confirm must not be called")
			return false, nil
		},
	}
	r := NewReconciler(map[string]PendingSource{"orders": broken}, noop.NewTracerProvider().Tracer("test"), ReconcilerConfig{})
	assert.Equal(t, 0, r.Tick(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{pending: []int64{8}}
	r := NewReconciler(map[string]PendingSource{"deposits": src}, noop.NewTracerProvider().Tracer("test"),
		ReconcilerConfig{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.confirmed) > 0
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
