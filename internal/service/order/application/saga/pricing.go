package saga

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-delivery/internal/service/order/domain"
	promodomain "nexus-delivery/internal/service/promotion/domain"
)

// PricingHandler 计算运费与优惠。小计只来自购物车快照。
type PricingHandler struct {
	NextHandler
}

func (h *PricingHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Pricing")
	defer span.End()

	store, err := orderCtx.Stores.FindStore(ctx, orderCtx.Cart.StoreID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	orderCtx.Store = store

	fee, err := orderCtx.Shipping.Quote(ctx, store, orderCtx.Address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "shipping quote failed")
		return err
	}
	orderCtx.ShippingFee = fee

	subtotal := domain.Subtotal(orderCtx.Cart.Items)
	if orderCtx.Voucher != nil {
		orderCtx.Discount = orderCtx.Vouchers.Discount(ctx, orderCtx.Voucher, promodomain.Fact{
			Subtotal:    subtotal,
			ShippingFee: fee,
			StoreID:     store.ID,
			CustomerID:  orderCtx.Input.CustomerID,
			At:          orderCtx.Now(),
		})
	}

	span.SetAttributes(
		attribute.String("order.subtotal", subtotal.String()),
		attribute.String("order.shipping_fee", fee.String()),
		attribute.String("order.discount", orderCtx.Discount.String()),
	)
	return h.executeNext(orderCtx)
}
