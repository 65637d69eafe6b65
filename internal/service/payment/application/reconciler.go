// Package application 驱动银行转账的对账：轮询网关并把结果落到订单与钱包上。
package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nexus-delivery/internal/pkg/logger"
)

// PendingSource 列出还在等待网关结果的支付码，并按支付码确认一次。
// Confirm 必须幂等：webhook 和轮询可能同时送达同一个码。
type PendingSource interface {
	Pending(ctx context.Context, olderThan time.Duration, limit int) ([]int64, error)
	Confirm(ctx context.Context, code int64) (bool, error)
}

// SourceFunc 把一对函数适配成 PendingSource。
type SourceFunc struct {
	PendingFn func(ctx context.Context, olderThan time.Duration, limit int) ([]int64, error)
	ConfirmFn func(ctx context.Context, code int64) (bool, error)
}

func (f SourceFunc) Pending(ctx context.Context, olderThan time.Duration, limit int) ([]int64, error) {
	return f.PendingFn(ctx, olderThan, limit)
}

func (f SourceFunc) Confirm(ctx context.Context, code int64) (bool, error) {
	return f.ConfirmFn(ctx, code)
}

type ReconcilerConfig struct {
	Interval time.Duration
	MinAge   time.Duration
	Batch    int
}

// Reconciler 定时扫描未决的银行订单与充值占位交易。
type Reconciler struct {
	sources map[string]PendingSource
	tracer  trace.Tracer
	cfg     ReconcilerConfig
}

func NewReconciler(sources map[string]PendingSource, tracer trace.Tracer, cfg ReconcilerConfig) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	return &Reconciler{sources: sources, tracer: tracer, cfg: cfg}
}

// Run 阻塞直到 ctx 取消，可以直接放进 AppInfo.Background。
func (r *Reconciler) Run(ctx context.Context) error {
	logger.L().Info().Dur("interval", r.cfg.Interval).Msg("✅ payment reconciler started")
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Tick(ctx)
		case <-ctx.Done():
			logger.L().Info().Msg("🛑 payment reconciler stopped")
			return nil
		}
	}
}

// Tick 跑一轮对账，返回本轮确认成功的数量。
func (r *Reconciler) Tick(ctx context.Context) int {
	confirmed := 0
	for name, src := range r.sources {
		confirmed += r.drain(ctx, name, src)
	}
	return confirmed
}

func (r *Reconciler) drain(ctx context.Context, name string, src PendingSource) int {
	ctx, span := r.tracer.Start(ctx, "reconciler.Drain", trace.WithAttributes(attribute.String("source", name)))
	defer span.End()

	pending, err := src.Pending(ctx, r.cfg.MinAge, r.cfg.Batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list pending failed")
		logger.Ctx(ctx).Error().Err(err).Str("source", name).Msg("failed to list pending payments")
		return 0
	}
	span.SetAttributes(attribute.Int("pending", len(pending)))

	confirmed := 0
	for _, code := range pending {
		if ctx.Err() != nil {
			break
		}
		ok, err := src.Confirm(ctx, code)
		if err != nil {
			// 网关不可用时留到下一轮
			logger.Ctx(ctx).Warn().Err(err).Str("source", name).Int64("payment_code", code).Msg("reconcile attempt failed")
			continue
		}
		if ok {
			confirmed++
		}
	}
	if confirmed > 0 {
		logger.Ctx(ctx).Info().Str("source", name).Int("confirmed", confirmed).Msg("payments reconciled")
	}
	return confirmed
}
