package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"

	"nexus-delivery/internal/service/order/domain"
)

// OrderModel 对应 orders 表
type OrderModel struct {
	ID              string          `gorm:"primaryKey;size:36"`
	Code            string          `gorm:"size:20;uniqueIndex"`
	PaymentCode     int64           `gorm:"uniqueIndex"`
	CustomerID      string          `gorm:"size:64;index"`
	StoreID         string          `gorm:"size:64;index"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ShippingFee     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	VoucherID       string          `gorm:"size:36"`
	PaymentMethod   string          `gorm:"size:16;index:idx_payment_pending,priority:1"`
	PaymentStatus   string          `gorm:"size:16;index:idx_payment_pending,priority:2"`
	Status          string          `gorm:"size:16;index:idx_payment_pending,priority:3"`
	ShipperID       string          `gorm:"size:64;not null;default:''"`
	DeliveryAddress string          `gorm:"size:512"`
	Note            string          `gorm:"size:512"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应 order_items 表
type OrderItemModel struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID     string `gorm:"size:36;index"`
	Position    int
	ProductID   string          `gorm:"size:64"`
	ProductName string          `gorm:"size:255"`
	VariantName string          `gorm:"size:128"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Quantity    int

	Toppings []OrderItemToppingModel `gorm:"foreignKey:OrderItemID"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// OrderItemToppingModel 对应 order_item_toppings 表
type OrderItemToppingModel struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	OrderItemID uint64          `gorm:"index"`
	Name        string          `gorm:"size:128"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

func (OrderItemToppingModel) TableName() string {
	return "order_item_toppings"
}

func toOrderModel(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:              o.ID,
		Code:            o.Code,
		PaymentCode:     o.PaymentCode,
		CustomerID:      o.CustomerID,
		StoreID:         o.StoreID,
		Subtotal:        o.Subtotal,
		ShippingFee:     o.ShippingFee,
		DiscountAmount:  o.DiscountAmount,
		TotalAmount:     o.TotalAmount,
		VoucherID:       o.VoucherID,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		Status:          string(o.Status),
		ShipperID:       o.ShipperID,
		DeliveryAddress: o.DeliveryAddress,
		Note:            o.Note,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for i, li := range o.Items {
		item := OrderItemModel{
			Position:    i,
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			VariantName: li.VariantName,
			UnitPrice:   li.UnitPrice,
			Quantity:    li.Quantity,
		}
		for _, t := range li.Toppings {
			item.Toppings = append(item.Toppings, OrderItemToppingModel{Name: t.Name, Price: t.Price})
		}
		m.Items = append(m.Items, item)
	}
	return m
}

func toDomainOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:              m.ID,
		Code:            m.Code,
		PaymentCode:     m.PaymentCode,
		CustomerID:      m.CustomerID,
		StoreID:         m.StoreID,
		Subtotal:        m.Subtotal,
		ShippingFee:     m.ShippingFee,
		DiscountAmount:  m.DiscountAmount,
		TotalAmount:     m.TotalAmount,
		VoucherID:       m.VoucherID,
		PaymentMethod:   domain.PaymentMethod(m.PaymentMethod),
		PaymentStatus:   domain.PaymentStatus(m.PaymentStatus),
		Status:          domain.Status(m.Status),
		ShipperID:       m.ShipperID,
		DeliveryAddress: m.DeliveryAddress,
		Note:            m.Note,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	for _, item := range m.Items {
		li := domain.LineItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		}
		for _, t := range item.Toppings {
			li.Toppings = append(li.Toppings, domain.ToppingSnapshot{Name: t.Name, Price: t.Price})
		}
		o.Items = append(o.Items, li)
	}
	return o
}
