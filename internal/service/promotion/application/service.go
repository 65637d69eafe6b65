package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/service/promotion/domain"
)

// PromotionService 定义了优惠服务提供的业务用例
type PromotionService struct {
	repo      domain.VoucherRepository
	evaluator *domain.Evaluator
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPromotionService 创建一个新的优惠服务实例
func NewPromotionService(repo domain.VoucherRepository, evaluator *domain.Evaluator, tracer trace.Tracer) *PromotionService {
	return &PromotionService{repo: repo, evaluator: evaluator, tracer: tracer, now: time.Now}
}

// FindVoucher 按 ID 读取优惠券
func (s *PromotionService) FindVoucher(ctx context.Context, voucherID string) (*domain.Voucher, error) {
	return s.repo.FindByID(ctx, voucherID)
}

// Discount 计算优惠券对给定订单事实的折扣，事实中未给出时间时取当前时间
func (s *PromotionService) Discount(ctx context.Context, v *domain.Voucher, fact domain.Fact) *QuoteResponse {
	_, span := s.tracer.Start(ctx, "service.Discount")
	defer span.End()

	if fact.At.IsZero() {
		fact.At = s.now()
	}
	discount := s.evaluator.Apply(v, fact)
	span.SetAttributes(
		attribute.String("voucher.id", v.ID),
		attribute.String("voucher.discount", discount.String()),
	)
	return &QuoteResponse{
		VoucherID:      v.ID,
		Code:           v.Code,
		DiscountAmount: discount,
		FinalAmount:    fact.Subtotal.Add(fact.ShippingFee).Sub(discount),
		Applicable:     discount.IsPositive(),
	}
}

// Quote 是试算接口：读取优惠券并计算折扣，不占用优惠券
func (s *PromotionService) Quote(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.Quote")
	defer span.End()
	span.SetAttributes(attribute.String("voucher.id", req.VoucherID), attribute.String("user.id", req.CustomerID))

	if req.Subtotal.IsNegative() || req.ShippingFee.IsNegative() {
		return nil, apperr.Invalid("amounts must not be negative")
	}
	v, err := s.repo.FindByID(ctx, req.VoucherID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	resp := s.Discount(ctx, v, domain.Fact{
		Subtotal:    req.Subtotal,
		ShippingFee: req.ShippingFee,
		StoreID:     req.StoreID,
		CustomerID:  req.CustomerID,
	})
	logger.Ctx(ctx).Debug().Str("voucher", v.ID).Str("discount", resp.DiscountAmount.String()).Msg("voucher quoted")
	return resp, nil
}
