package saga

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"nexus-delivery/internal/pkg/txn"
	"nexus-delivery/internal/service/order/domain"
	"nexus-delivery/internal/service/order/domain/port"
	paymentdomain "nexus-delivery/internal/service/payment/domain"
	promodomain "nexus-delivery/internal/service/promotion/domain"
)

// Input 是下单请求在责任链中的原始输入
type Input struct {
	CustomerID    string
	AddressID     string
	PaymentMethod string
	VoucherID     string
	Note          string
}

// Deps 是责任链各步骤依赖的出站端口
type Deps struct {
	Repo      domain.OrderRepository
	Txm       txn.Manager
	Carts     port.CartProvider
	Addresses port.AddressStore
	Stores    port.StoreDirectory
	Shipping  port.ShippingService
	Vouchers  port.VoucherEvaluator
	Ledger    port.WalletLedger
	Gateway   port.PaymentGateway
	Notifier  port.NotificationProducer
	IntentTTL time.Duration
	Now       func() time.Time
}

// OrderContext 在责任链中传递输入、依赖与中间结果。
type OrderContext struct {
	Ctx    context.Context
	Tracer trace.Tracer
	Input  Input
	*Deps

	Method      domain.PaymentMethod
	Cart        *port.Cart
	Address     *port.Address
	Store       *port.Store
	Voucher     *promodomain.Voucher
	ShippingFee decimal.Decimal
	Discount    decimal.Decimal
	Order       *domain.Order
	Payment     *paymentdomain.Intent
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}

// NewCreateOrderChain 组装下单流程：校验 → 定价 → 余额预检 → 落库 → 支付 → 通知
func NewCreateOrderChain() Handler {
	chain := new(ValidationHandler)
	chain.
		SetNext(new(PricingHandler)).
		SetNext(new(BalanceCheckHandler)).
		SetNext(new(CreateOrderHandler)).
		SetNext(new(PaymentHandler)).
		SetNext(new(NotificationHandler))
	return chain
}
