// Package domain 定义优惠券与折扣计算规则。
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Voucher 是一张可在下单时使用的优惠券。可选字段为 nil 表示不限制。
type Voucher struct {
	ID                string
	Code              string
	DiscountValue     decimal.Decimal
	MinOrderValue     *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	IsActive          bool
	ValidFrom         *time.Time
	ValidTo           *time.Time
	// Condition 是额外的 CEL 适用条件，例如 `store_id == "s-1" && subtotal >= 100000.0`。
	Condition string
}

// Fact 是评估优惠时可见的订单事实。
type Fact struct {
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	StoreID     string
	CustomerID  string
	At          time.Time
}

// ActiveAt 判断优惠券在 t 时刻是否处于启用且在有效期内。
func (v *Voucher) ActiveAt(t time.Time) bool {
	if !v.IsActive {
		return false
	}
	if v.ValidFrom != nil && t.Before(*v.ValidFrom) {
		return false
	}
	if v.ValidTo != nil && t.After(*v.ValidTo) {
		return false
	}
	return true
}
