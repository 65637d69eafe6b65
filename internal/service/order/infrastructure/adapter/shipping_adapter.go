package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	"nexus-delivery/internal/service/order/domain/port"
)

// FlatShippingAdapter 按配置返回固定运费
type FlatShippingAdapter struct {
	fee decimal.Decimal
}

func NewFlatShippingAdapter(fee decimal.Decimal) *FlatShippingAdapter {
	return &FlatShippingAdapter{fee: fee}
}

func (a *FlatShippingAdapter) Quote(context.Context, *port.Store, *port.Address) (decimal.Decimal, error) {
	return a.fee, nil
}
