package application

import (
	"time"

	"github.com/shopspring/decimal"

	"nexus-delivery/internal/service/order/domain"
	paymentdomain "nexus-delivery/internal/service/payment/domain"
)

// Config 是订单服务的可调参数
type Config struct {
	ProcessingTimeout time.Duration
	IntentTTL         time.Duration
	// VerifyGrace 之后仍无法核实的银行转账订单会被放弃
	VerifyGrace         time.Duration
	DefaultNearbyRadius float64
	Now                 func() time.Time
}

// CreateOrderRequest 是创建订单用例的输入数据
type CreateOrderRequest struct {
	CustomerID    string `json:"-"`
	AddressID     string `json:"address_id"`
	PaymentMethod string `json:"payment_method"`
	VoucherID     string `json:"voucher_id,omitempty"`
	Note          string `json:"note,omitempty"`
}

// PaymentPayload 是银行转账订单返回给用户的付款信息
type PaymentPayload = paymentdomain.Intent

// CreateOrderResponse 是创建订单用例的输出数据
type CreateOrderResponse struct {
	OrderID       string               `json:"order_id"`
	OrderCode     string               `json:"order_code"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Status        domain.Status        `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	Payment       *PaymentPayload      `json:"payment,omitempty"`
}

type TransitionRequest struct {
	Action string `json:"action"`
}

type TransitionResponse struct {
	OrderID string        `json:"order_id"`
	Status  domain.Status `json:"status"`
}

type AssignShipperRequest struct {
	ShipperID string `json:"shipper_id"`
}

type AssignShipperResponse struct {
	OrderID  string `json:"order_id"`
	Assigned bool   `json:"assigned"`
}

// OrderView 是订单详情
type OrderView struct {
	ID              string               `json:"id"`
	Code            string               `json:"code"`
	PaymentCode     int64                `json:"payment_code"`
	CustomerID      string               `json:"customer_id"`
	StoreID         string               `json:"store_id"`
	Items           []domain.LineItem    `json:"items"`
	Subtotal        decimal.Decimal      `json:"subtotal"`
	ShippingFee     decimal.Decimal      `json:"shipping_fee"`
	DiscountAmount  decimal.Decimal      `json:"discount_amount"`
	TotalAmount     decimal.Decimal      `json:"total_amount"`
	VoucherID       string               `json:"voucher_id,omitempty"`
	PaymentMethod   domain.PaymentMethod `json:"payment_method"`
	PaymentStatus   domain.PaymentStatus `json:"payment_status"`
	Status          domain.Status        `json:"status"`
	ShipperID       string               `json:"shipper_id,omitempty"`
	DeliveryAddress string               `json:"delivery_address"`
	Note            string               `json:"note,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func toOrderView(o *domain.Order) *OrderView {
	return &OrderView{
		ID: o.ID, Code: o.Code, PaymentCode: o.PaymentCode,
		CustomerID: o.CustomerID, StoreID: o.StoreID, Items: o.Items,
		Subtotal: o.Subtotal, ShippingFee: o.ShippingFee, DiscountAmount: o.DiscountAmount, TotalAmount: o.TotalAmount,
		VoucherID: o.VoucherID, PaymentMethod: o.PaymentMethod, PaymentStatus: o.PaymentStatus, Status: o.Status,
		ShipperID: o.ShipperID, DeliveryAddress: o.DeliveryAddress, Note: o.Note,
		CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
	}
}
