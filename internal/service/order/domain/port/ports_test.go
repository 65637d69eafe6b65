package port

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nexus-delivery/internal/service/order/domain"
)

func TestCartRemoveMatchesVariantAndToppings(t *testing.T) {
	plain := domain.LineItem{ProductID: "p-1", Quantity: 2}
	pate := domain.LineItem{ProductID: "p-1", Quantity: 1, Toppings: []domain.ToppingSnapshot{{Name: "Pate"}}}
	large := domain.LineItem{ProductID: "p-1", VariantName: "Large", Quantity: 1}
	cart := &Cart{Items: []domain.LineItem{plain, pate, large}}

	cart.Remove([]domain.LineItem{{ProductID: "p-1", Quantity: 1}, pate})

	assert.Equal(t, []domain.LineItem{
		{ProductID: "p-1", Quantity: 1},
		large,
	}, cart.Items)
}

func TestCartRemoveNeverGoesNegative(t *testing.T) {
	cart := &Cart{Items: []domain.LineItem{{ProductID: "p-1", Quantity: 1}}}

	cart.Remove([]domain.LineItem{{ProductID: "p-1", Quantity: 5}})

	assert.Empty(t, cart.Items)
}
