package saga

import (
	"go.opentelemetry.io/otel/attribute"

	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/service/order/domain"
)

// NotificationHandler 是链的最后一步。通知是即发即忘的，不会让下单失败。
type NotificationHandler struct {
	NextHandler
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Notification")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.topic", "notifications"),
	)

	order := orderCtx.Order
	now := orderCtx.Now()
	orderCtx.Notifier.Publish(ctx, domain.Event{Type: domain.EventOrderPlaced, Recipient: order.CustomerID, Order: order, At: now})
	if order.Status == domain.StatusConfirmed {
		orderCtx.Notifier.Publish(ctx, domain.Event{Type: domain.EventOrderPlaced, Recipient: orderCtx.Store.OwnerID, Order: order, At: now})
	}
	logger.Ctx(ctx).Info().Str("order", order.ID).Str("code", order.Code).Str("status", string(order.Status)).Msg("📦 order placed")

	span.AddEvent("Order notifications dispatched.")
	return h.executeNext(orderCtx)
}
