package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	promoapp "nexus-delivery/internal/service/promotion/application"
	promodomain "nexus-delivery/internal/service/promotion/domain"
)

// PromotionAdapter 把优惠上下文的应用服务适配为 port.VoucherEvaluator
type PromotionAdapter struct {
	service *promoapp.PromotionService
}

func NewPromotionAdapter(service *promoapp.PromotionService) *PromotionAdapter {
	return &PromotionAdapter{service: service}
}

func (a *PromotionAdapter) FindVoucher(ctx context.Context, voucherID string) (*promodomain.Voucher, error) {
	return a.service.FindVoucher(ctx, voucherID)
}

func (a *PromotionAdapter) Discount(ctx context.Context, v *promodomain.Voucher, fact promodomain.Fact) decimal.Decimal {
	return a.service.Discount(ctx, v, fact).DiscountAmount
}
