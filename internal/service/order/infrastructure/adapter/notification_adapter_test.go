package adapter

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"nexus-delivery/internal/service/order/domain"
)

func TestRenderEvents(t *testing.T) {
	o := &domain.Order{ID: "o-1", Code: "FD260101000001", Status: domain.StatusConfirmed,
		TotalAmount: decimal.NewFromInt(105000), ShipperID: "shipper-1"}

	ev := render(domain.Event{Type: domain.EventOrderPlaced, Recipient: "c-1", Order: o})
	assert.Equal(t, "c-1", ev.UserID)
	assert.Equal(t, "ORDER_PLACED", ev.Type)
	assert.Equal(t, "o-1", ev.OrderID)
	assert.Contains(t, ev.Message, "105000")

	ev = render(domain.Event{Type: domain.EventShipperAssigned, Recipient: "shipper-1", Order: o})
	assert.Equal(t, "shipper-1", ev.Data["shipper_id"])

	ev = render(domain.Event{Type: domain.EventStatusChanged, Recipient: "c-1", Order: o})
	assert.Contains(t, ev.Message, "CONFIRMED")
}
