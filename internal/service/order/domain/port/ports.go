// Package port 定义订单上下文依赖的出站端口。
package port

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	dispatchdomain "nexus-delivery/internal/service/dispatch/domain"
	"nexus-delivery/internal/service/order/domain"
	paymentdomain "nexus-delivery/internal/service/payment/domain"
	promodomain "nexus-delivery/internal/service/promotion/domain"
)

// Cart 是购物车在下单瞬间的快照
type Cart struct {
	CustomerID string            `json:"customer_id"`
	StoreID    string            `json:"store_id"`
	Items      []domain.LineItem `json:"items"`
}

// Remove 从购物车扣掉已下单的行，数量扣到 0 的行被移除。
// 快照之后新加入的商品保留。
func (c *Cart) Remove(ordered []domain.LineItem) {
	left := make(map[string]int, len(ordered))
	for _, li := range ordered {
		left[lineKey(li)] += li.Quantity
	}
	kept := c.Items[:0]
	for _, li := range c.Items {
		k := lineKey(li)
		take := min(left[k], li.Quantity)
		left[k] -= take
		li.Quantity -= take
		if li.Quantity > 0 {
			kept = append(kept, li)
		}
	}
	c.Items = kept
}

func lineKey(li domain.LineItem) string {
	parts := []string{li.ProductID, li.VariantName}
	for _, t := range li.Toppings {
		parts = append(parts, t.Name)
	}
	return strings.Join(parts, "\x00")
}

// CartProvider 读取用户购物车，并在订单成交后扣掉已下单的商品
type CartProvider interface {
	Snapshot(ctx context.Context, customerID string) (*Cart, error)
	Consume(ctx context.Context, customerID string, ordered []domain.LineItem) error
}

// Address 是收货地址
type Address struct {
	ID          string
	UserID      string
	FullAddress string
	Lat         float64
	Lng         float64
}

type AddressStore interface {
	FindAddress(ctx context.Context, addressID string) (*Address, error)
}

// Store 是门店信息，坐标作为找骑手的原点
type Store struct {
	ID      string
	OwnerID string
	Name    string
	Lat     float64
	Lng     float64
}

type StoreDirectory interface {
	FindStore(ctx context.Context, storeID string) (*Store, error)
}

// ShippingService 计算运费
type ShippingService interface {
	Quote(ctx context.Context, store *Store, address *Address) (decimal.Decimal, error)
}

// VoucherEvaluator 读取优惠券并计算折扣
type VoucherEvaluator interface {
	FindVoucher(ctx context.Context, voucherID string) (*promodomain.Voucher, error)
	Discount(ctx context.Context, v *promodomain.Voucher, fact promodomain.Fact) decimal.Decimal
}

// WalletLedger 是订单对钱包账本的视图
type WalletLedger interface {
	// Balance 在用户还没有钱包时返回 0
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	// DebitForOrder 余额不足时返回 false
	DebitForOrder(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) (bool, error)
	RefundOrder(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) error
}

// PaymentGateway 是线上支付网关
type PaymentGateway = paymentdomain.Gateway

// ShipperFinder 按距离查找骑手
type ShipperFinder interface {
	FindNearby(ctx context.Context, origin dispatchdomain.Point, radiusMeters float64) ([]dispatchdomain.Match, error)
}

// NotificationProducer 是即发即忘的通知出口，失败不能影响订单
type NotificationProducer interface {
	Publish(ctx context.Context, event domain.Event)
}
