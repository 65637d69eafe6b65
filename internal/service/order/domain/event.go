package domain

import "time"

// EventType 是订单向用户发出的通知类型
type EventType string

const (
	EventOrderPlaced      EventType = "ORDER_PLACED"
	EventPaymentConfirmed EventType = "PAYMENT_CONFIRMED"
	EventPaymentFailed    EventType = "PAYMENT_FAILED"
	EventStatusChanged    EventType = "ORDER_STATUS_CHANGED"
	EventShipperAssigned  EventType = "SHIPPER_ASSIGNED"
	EventOrderRefunded    EventType = "ORDER_REFUNDED"
)

// Event 是订单生命周期中值得通知的事情
type Event struct {
	Type      EventType
	Recipient string
	Order     *Order
	At        time.Time
}
