package saga

import (
	"go.opentelemetry.io/otel/attribute"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/service/order/domain"
)

// BalanceCheckHandler 对钱包支付做余额预检，不足时在落库前中止
type BalanceCheckHandler struct {
	NextHandler
}

func (h *BalanceCheckHandler) Handle(orderCtx *OrderContext) error {
	if orderCtx.Method != domain.PaymentWallet {
		return h.executeNext(orderCtx)
	}
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.BalanceCheck")
	defer span.End()

	total := domain.Subtotal(orderCtx.Cart.Items).Add(orderCtx.ShippingFee).Sub(orderCtx.Discount)
	balance, err := orderCtx.Ledger.Balance(ctx, orderCtx.Input.CustomerID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.String("wallet.balance", balance.String()), attribute.String("order.total", total.String()))
	if balance.LessThan(total) {
		return apperr.ErrInsufficientBalance
	}
	return h.executeNext(orderCtx)
}
