package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/service/dispatch/domain"
)

// DispatchService 基于骑手实时位置做就近匹配
type DispatchService struct {
	fleet      domain.FleetStore
	tracer     trace.Tracer
	staleAfter time.Duration
	now        func() time.Time
}

// NewDispatchService staleAfter 为 0 时不做过期过滤
func NewDispatchService(fleet domain.FleetStore, tracer trace.Tracer, staleAfter time.Duration) *DispatchService {
	return &DispatchService{fleet: fleet, tracer: tracer, staleAfter: staleAfter, now: time.Now}
}

func (s *DispatchService) FindNearby(ctx context.Context, origin domain.Point, radiusMeters float64) ([]domain.Match, error) {
	ctx, span := s.tracer.Start(ctx, "dispatch.FindNearby")
	defer span.End()

	if radiusMeters < 0 {
		return nil, apperr.Invalid("radius must not be negative")
	}
	if !domain.ValidPoint(origin) {
		return nil, apperr.Invalid("origin out of range")
	}

	candidates, err := s.fleet.Snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	fresh := s.dropStale(candidates)
	matches := domain.FindNearby(fresh, origin, radiusMeters)

	span.SetAttributes(
		attribute.Int("fleet.size", len(candidates)),
		attribute.Int("fleet.fresh", len(fresh)),
		attribute.Int("dispatch.matches", len(matches)),
	)
	logger.Ctx(ctx).Debug().Int("fleet", len(candidates)).Int("matches", len(matches)).Float64("radius", radiusMeters).Msg("nearby shippers resolved")
	return matches, nil
}

func (s *DispatchService) dropStale(candidates []domain.Candidate) []domain.Candidate {
	if s.staleAfter <= 0 {
		return candidates
	}
	cutoff := s.now().Add(-s.staleAfter)
	fresh := candidates[:0:0]
	for _, c := range candidates {
		if c.LastSeenAt.IsZero() || c.LastSeenAt.Before(cutoff) {
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh
}

// ReportLocation 记录骑手上报的位置
func (s *DispatchService) ReportLocation(ctx context.Context, shipperID string, p domain.Point) error {
	if shipperID == "" {
		return apperr.Invalid("shipper id is required")
	}
	if !domain.ValidPoint(p) {
		return apperr.Invalid("coordinates out of range")
	}
	return s.fleet.UpdateLocation(ctx, shipperID, p, s.now())
}

// GoOffline 在骑手断开连接时调用
func (s *DispatchService) GoOffline(ctx context.Context, shipperID string) error {
	return s.fleet.SetOnline(ctx, shipperID, false, s.now())
}
