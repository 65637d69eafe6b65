package saga

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/service/order/domain"
	paymentdomain "nexus-delivery/internal/service/payment/domain"
)

// PaymentHandler 根据支付方式推进刚落库的订单。
// 钱包扣款与订单状态变更在同一个事务里，任何一步失败订单都保持 PENDING/PENDING。
type PaymentHandler struct {
	NextHandler
}

var pendingState = domain.State{Status: domain.StatusPending, PaymentStatus: domain.PaymentPending}

func (h *PaymentHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Payment")
	defer span.End()

	order := orderCtx.Order
	span.SetAttributes(attribute.String("order.payment_method", string(order.PaymentMethod)))

	var err error
	switch {
	case order.PaymentMethod == domain.PaymentCash:
		err = h.advance(ctx, orderCtx, domain.State{Status: domain.StatusConfirmed, PaymentStatus: domain.PaymentPending}, nil)
	case !order.TotalAmount.IsPositive():
		// 优惠抵扣全部金额，无需收款
		err = h.advance(ctx, orderCtx, domain.State{Status: domain.StatusConfirmed, PaymentStatus: domain.PaymentPaid}, nil)
	case order.PaymentMethod == domain.PaymentWallet:
		err = h.advance(ctx, orderCtx, domain.State{Status: domain.StatusConfirmed, PaymentStatus: domain.PaymentPaid}, func(txCtx context.Context) error {
			ok, err := orderCtx.Ledger.DebitForOrder(txCtx, order.CustomerID, order.TotalAmount, "Payment for order "+order.Code, order.ID)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.ErrInsufficientBalance
			}
			return nil
		})
	case order.PaymentMethod == domain.PaymentBanking:
		err = h.requestIntent(ctx, orderCtx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment step failed")
		return err
	}
	return h.executeNext(orderCtx)
}

// advance 在事务中执行 before（可选）并把订单从 PENDING/PENDING 推进到 next，成功后清空购物车
func (h *PaymentHandler) advance(ctx context.Context, orderCtx *OrderContext, next domain.State, before func(context.Context) error) error {
	order := orderCtx.Order
	err := orderCtx.Txm.WithTx(ctx, func(txCtx context.Context) error {
		if before != nil {
			if err := before(txCtx); err != nil {
				return err
			}
		}
		ok, err := orderCtx.Repo.UpdateState(txCtx, order.ID, pendingState, next)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Illegal("order %s left PENDING before payment settled", order.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	order.Status, order.PaymentStatus = next.Status, next.PaymentStatus
	order.UpdatedAt = orderCtx.Now()

	if err := orderCtx.Carts.Consume(ctx, order.CustomerID, order.Items); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order", order.ID).Msg("failed to consume cart after order settled")
	}
	return nil
}

func (h *PaymentHandler) requestIntent(ctx context.Context, orderCtx *OrderContext) error {
	order := orderCtx.Order
	intent, err := orderCtx.Gateway.CreateIntent(ctx, paymentdomain.IntentRequest{
		OrderCode:   order.PaymentCode,
		Amount:      order.TotalAmount,
		Description: order.Code,
		BuyerName:   order.CustomerID,
		ExpiresAt:   orderCtx.Now().Add(orderCtx.IntentTTL),
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order", order.ID).Msg("payment intent not created, order stays PENDING")
		return err
	}
	orderCtx.Payment = intent
	return nil
}
