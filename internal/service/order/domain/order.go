package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"nexus-delivery/internal/pkg/apperr"
)

// ToppingSnapshot 是下单时冻结的加料信息
type ToppingSnapshot struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// LineItem 是下单时冻结的商品快照，之后目录变化不影响历史订单
type LineItem struct {
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	VariantName string            `json:"variant_name,omitempty"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	Quantity    int               `json:"quantity"`
	Toppings    []ToppingSnapshot `json:"toppings,omitempty"`
}

// Total = (单价 + 加料) × 数量
func (li LineItem) Total() decimal.Decimal {
	unit := li.UnitPrice
	for _, t := range li.Toppings {
		unit = unit.Add(t.Price)
	}
	return unit.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func (li LineItem) validate() error {
	if li.Quantity <= 0 {
		return apperr.Invalid("item %s has non-positive quantity", li.ProductID)
	}
	if li.UnitPrice.IsNegative() {
		return apperr.Invalid("item %s has negative price", li.ProductID)
	}
	for _, t := range li.Toppings {
		if t.Price.IsNegative() {
			return apperr.Invalid("topping %s has negative price", t.Name)
		}
	}
	return nil
}

// Subtotal 汇总所有行项目
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, li := range items {
		sum = sum.Add(li.Total())
	}
	return sum
}

// Order 是订单聚合的根实体。金额字段落库后不可修改，退款通过账本流水体现。
type Order struct {
	ID              string
	Code            string
	PaymentCode     int64
	CustomerID      string
	StoreID         string
	Items           []LineItem
	Subtotal        decimal.Decimal
	ShippingFee     decimal.Decimal
	DiscountAmount  decimal.Decimal
	TotalAmount     decimal.Decimal
	VoucherID       string
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	Status          Status
	ShipperID       string
	DeliveryAddress string
	Note            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Draft 是构造订单所需的全部输入
type Draft struct {
	ID              string
	Code            string
	PaymentCode     int64
	CustomerID      string
	StoreID         string
	Items           []LineItem
	ShippingFee     decimal.Decimal
	DiscountAmount  decimal.Decimal
	VoucherID       string
	PaymentMethod   PaymentMethod
	DeliveryAddress string
	Note            string
	At              time.Time
}

// NewOrder 计算金额并返回 PENDING/PENDING 的新订单
func NewOrder(d Draft) (*Order, error) {
	if d.ID == "" || d.CustomerID == "" || d.StoreID == "" {
		return nil, apperr.Invalid("order requires id, customer and store")
	}
	if len(d.Items) == 0 {
		return nil, apperr.ErrEmptyCart
	}
	for _, li := range d.Items {
		if err := li.validate(); err != nil {
			return nil, err
		}
	}
	if d.ShippingFee.IsNegative() || d.DiscountAmount.IsNegative() {
		return nil, apperr.Invalid("fees and discounts must not be negative")
	}

	subtotal := Subtotal(d.Items)
	total := subtotal.Add(d.ShippingFee).Sub(d.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return &Order{
		ID:              d.ID,
		Code:            d.Code,
		PaymentCode:     d.PaymentCode,
		CustomerID:      d.CustomerID,
		StoreID:         d.StoreID,
		Items:           d.Items,
		Subtotal:        subtotal,
		ShippingFee:     d.ShippingFee,
		DiscountAmount:  d.DiscountAmount,
		TotalAmount:     total,
		VoucherID:       d.VoucherID,
		PaymentMethod:   d.PaymentMethod,
		PaymentStatus:   PaymentPending,
		Status:          StatusPending,
		DeliveryAddress: d.DeliveryAddress,
		Note:            d.Note,
		CreatedAt:       d.At,
		UpdatedAt:       d.At,
	}, nil
}

// State 返回当前的组合状态
func (o *Order) State() State {
	return State{Status: o.Status, PaymentStatus: o.PaymentStatus}
}

// RolesOf 返回 actorID 在这个订单上的身份
func (o *Order) RolesOf(actorID, storeOwnerID string) Role {
	var r Role
	if actorID == "" {
		return r
	}
	if actorID == o.CustomerID {
		r |= RoleCustomer
	}
	if actorID == storeOwnerID {
		r |= RoleStoreOwner
	}
	if o.ShipperID != "" && actorID == o.ShipperID {
		r |= RoleShipper
	}
	return r
}

// Plan 校验授权与合法性，返回执行 action 后的目标组合状态
//
// 现金订单送达即视为收款。
func (o *Order) Plan(action Action, actorID, storeOwnerID string) (State, error) {
	if o.RolesOf(actorID, storeOwnerID)&AllowedRoles(action) == 0 {
		if _, ok := transitions[action]; !ok {
			return State{}, apperr.Invalid("unknown action %q", action)
		}
		return State{}, apperr.Unauthorized("actor %s may not %s order %s", actorID, action, o.ID)
	}
	to, err := Next(o.Status, action)
	if err != nil {
		return State{}, err
	}
	// 线上支付的订单只能由付款流程确认
	if action == ActionConfirm && o.PaymentMethod != PaymentCash && o.PaymentStatus != PaymentPaid {
		return State{}, apperr.Illegal("order %s is paid by %s and payment is %s", o.ID, o.PaymentMethod, o.PaymentStatus)
	}
	next := State{Status: to, PaymentStatus: o.PaymentStatus}
	if action == ActionComplete && o.PaymentMethod == PaymentCash {
		next.PaymentStatus = PaymentPaid
	}
	return next, nil
}

// NeedsRefund 表示取消时需要把已付款项退回钱包
func (o *Order) NeedsRefund(next State) bool {
	return next.Status == StatusCancelled && o.PaymentStatus == PaymentPaid && o.TotalAmount.IsPositive()
}
