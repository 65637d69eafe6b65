package domain

import (
	"context"
	"time"
)

// FleetStore 保存骑手的实时位置与在线状态。
type FleetStore interface {
	Snapshot(ctx context.Context) ([]Candidate, error)
	UpdateLocation(ctx context.Context, shipperID string, p Point, at time.Time) error
	SetOnline(ctx context.Context, shipperID string, online bool, at time.Time) error
}
