package adapter

import (
	"context"
	"fmt"

	"nexus-delivery/internal/pkg/notify"
	"nexus-delivery/internal/service/order/domain"
)

// NotificationAdapter 实现了 port.NotificationProducer，把订单事件转成用户通知交给异步派发器。
type NotificationAdapter struct {
	dispatcher *notify.Dispatcher
}

func NewNotificationAdapter(dispatcher *notify.Dispatcher) *NotificationAdapter {
	return &NotificationAdapter{dispatcher: dispatcher}
}

func (a *NotificationAdapter) Publish(ctx context.Context, event domain.Event) {
	a.dispatcher.Notify(ctx, render(event))
}

func render(event domain.Event) notify.Event {
	o := event.Order
	ev := notify.Event{
		UserID:  event.Recipient,
		Type:    string(event.Type),
		OrderID: o.ID,
		Data: map[string]string{
			"order_code": o.Code,
			"status":     string(o.Status),
			"total":      o.TotalAmount.String(),
		},
	}
	switch event.Type {
	case domain.EventOrderPlaced:
		ev.Title = "Order placed"
		ev.Message = fmt.Sprintf("Order %s was placed. Total: %s.", o.Code, o.TotalAmount.StringFixed(0))
	case domain.EventPaymentConfirmed:
		ev.Title = "Payment received"
		ev.Message = fmt.Sprintf("We received your payment for order %s.", o.Code)
	case domain.EventPaymentFailed:
		ev.Title = "Payment not completed"
		ev.Message = fmt.Sprintf("Payment for order %s expired or was cancelled. The order has been cancelled.", o.Code)
	case domain.EventShipperAssigned:
		ev.Title = "Shipper assigned"
		ev.Message = fmt.Sprintf("Order %s has been assigned to a shipper.", o.Code)
		ev.Data["shipper_id"] = o.ShipperID
	case domain.EventOrderRefunded:
		ev.Title = "Refund issued"
		ev.Message = fmt.Sprintf("%s was refunded to your wallet for order %s.", o.TotalAmount.StringFixed(0), o.Code)
	default:
		ev.Title = "Order updated"
		ev.Message = fmt.Sprintf("Order %s is now %s.", o.Code, o.Status)
	}
	return ev
}
