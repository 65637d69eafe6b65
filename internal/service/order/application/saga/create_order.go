package saga

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/idgen"
	"nexus-delivery/internal/service/order/domain"
)

const codeRetries = 3

// CreateOrderHandler 在一个事务中持久化订单及其全部快照
type CreateOrderHandler struct {
	NextHandler
}

func (h *CreateOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.CreateOrder")
	defer span.End()

	now := orderCtx.Now()
	draft := domain.Draft{
		ID:              uuid.NewString(),
		CustomerID:      orderCtx.Input.CustomerID,
		StoreID:         orderCtx.Store.ID,
		Items:           orderCtx.Cart.Items,
		ShippingFee:     orderCtx.ShippingFee,
		DiscountAmount:  orderCtx.Discount,
		VoucherID:       orderCtx.Input.VoucherID,
		PaymentMethod:   orderCtx.Method,
		DeliveryAddress: orderCtx.Address.FullAddress,
		Note:            orderCtx.Input.Note,
		At:              now,
	}

	var err error
	for i := 0; i < codeRetries; i++ {
		draft.Code = idgen.OrderCode(now)
		draft.PaymentCode = idgen.PaymentCode(now)
		var order *domain.Order
		if order, err = domain.NewOrder(draft); err != nil {
			return err
		}
		err = orderCtx.Txm.WithTx(ctx, func(txCtx context.Context) error {
			return orderCtx.Repo.Create(txCtx, order)
		})
		if err == nil {
			orderCtx.Order = order
			break
		}
		if !errors.Is(err, apperr.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist order failed")
		if errors.Is(err, apperr.ErrDuplicate) {
			return errors.Wrap(err, "allocate order code")
		}
		return err
	}

	span.SetAttributes(
		attribute.String("order.id", orderCtx.Order.ID),
		attribute.String("order.code", orderCtx.Order.Code),
		attribute.String("order.total", orderCtx.Order.TotalAmount.String()),
	)
	span.AddEvent("Order persisted in PENDING state.")
	return h.executeNext(orderCtx)
}
