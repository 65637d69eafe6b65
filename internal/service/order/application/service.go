package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/pkg/metrics"
	"nexus-delivery/internal/pkg/txn"
	dispatchdomain "nexus-delivery/internal/service/dispatch/domain"
	"nexus-delivery/internal/service/order/application/saga"
	"nexus-delivery/internal/service/order/domain"
	"nexus-delivery/internal/service/order/domain/port"
)

// OrderApplicationService 只关注业务流程编排。
type OrderApplicationService struct {
	deps    *saga.Deps
	finder  port.ShipperFinder
	tracer  trace.Tracer
	cfg     Config
	creator saga.Handler
}

func NewOrderApplicationService(
	orderRepo domain.OrderRepository,
	txm txn.Manager,
	carts port.CartProvider,
	addresses port.AddressStore,
	stores port.StoreDirectory,
	shipping port.ShippingService,
	vouchers port.VoucherEvaluator,
	ledger port.WalletLedger,
	gateway port.PaymentGateway,
	finder port.ShipperFinder,
	notifier port.NotificationProducer,
	tracer trace.Tracer,
	cfg Config,
) *OrderApplicationService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 10 * time.Second
	}
	if cfg.IntentTTL <= 0 {
		cfg.IntentTTL = 15 * time.Minute
	}
	if cfg.VerifyGrace <= 0 {
		cfg.VerifyGrace = time.Hour
	}
	if cfg.DefaultNearbyRadius <= 0 {
		cfg.DefaultNearbyRadius = 5000
	}
	return &OrderApplicationService{
		deps: &saga.Deps{
			Repo: orderRepo, Txm: txm, Carts: carts, Addresses: addresses, Stores: stores,
			Shipping: shipping, Vouchers: vouchers, Ledger: ledger, Gateway: gateway,
			Notifier: notifier, IntentTTL: cfg.IntentTTL, Now: cfg.Now,
		},
		finder:  finder,
		tracer:  tracer,
		cfg:     cfg,
		creator: saga.NewCreateOrderChain(),
	}
}

// CreateOrder 把购物车变成订单，并按支付方式完成扣款、发起支付或直接确认
func (s *OrderApplicationService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", req.CustomerID), attribute.String("order.payment_method", req.PaymentMethod))

	processingCtx, cancel := context.WithTimeout(ctx, s.cfg.ProcessingTimeout)
	defer cancel()

	orderCtx := &saga.OrderContext{
		Ctx:    processingCtx,
		Tracer: s.tracer,
		Deps:   s.deps,
		Input: saga.Input{
			CustomerID:    req.CustomerID,
			AddressID:     req.AddressID,
			PaymentMethod: req.PaymentMethod,
			VoucherID:     req.VoucherID,
			Note:          req.Note,
		},
	}

	if err := s.creator.Handle(orderCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order creation failed")
		ev := logger.Ctx(ctx).Warn().Err(err).Str("user", req.CustomerID)
		if orderCtx.Order != nil {
			ev = ev.Str("order", orderCtx.Order.ID)
		}
		ev.Msg("order creation aborted")
		return nil, err
	}

	order := orderCtx.Order
	metrics.RecordOrderCreated(string(order.PaymentMethod))
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.status", string(order.Status)))
	return &CreateOrderResponse{
		OrderID:       order.ID,
		OrderCode:     order.Code,
		TotalAmount:   order.TotalAmount,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Payment:       orderCtx.Payment,
	}, nil
}

// GetOrder 只对下单用户、门店主和已分配骑手可见
func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID, actorID string) (*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()

	o, ownerID, err := s.loadWithOwner(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.RolesOf(actorID, ownerID) == 0 {
		return nil, apperr.Unauthorized("actor %s may not view order %s", actorID, orderID)
	}
	return toOrderView(o), nil
}

func (s *OrderApplicationService) loadWithOwner(ctx context.Context, orderID string) (*domain.Order, string, error) {
	o, err := s.deps.Repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	store, err := s.deps.Stores.FindStore(ctx, o.StoreID)
	if err != nil {
		return nil, "", err
	}
	return o, store.OwnerID, nil
}

// Transition 执行一次状态迁移。并发迁移通过 compare-and-set 只会有一个成功，失败方得到 IllegalTransition。
func (s *OrderApplicationService) Transition(ctx context.Context, orderID, actorID string, action domain.Action) (domain.Status, error) {
	ctx, span := s.tracer.Start(ctx, "app.Transition")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.action", string(action)))

	status, err := s.transition(ctx, orderID, actorID, action)
	metrics.RecordTransition(string(action), err)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return status, nil
}

func (s *OrderApplicationService) transition(ctx context.Context, orderID, actorID string, action domain.Action) (domain.Status, error) {
	o, ownerID, err := s.loadWithOwner(ctx, orderID)
	if err != nil {
		return "", err
	}
	next, err := o.Plan(action, actorID, ownerID)
	if err != nil {
		return "", err
	}

	refund := o.NeedsRefund(next)
	err = s.deps.Txm.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := s.deps.Repo.UpdateState(txCtx, o.ID, o.State(), next)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Illegal("order %s changed concurrently, %s rejected", o.ID, action)
		}
		if refund {
			return s.deps.Ledger.RefundOrder(txCtx, o.CustomerID, o.TotalAmount, "Refund for order "+o.Code, o.ID)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	prev := o.Status
	o.Status, o.PaymentStatus, o.UpdatedAt = next.Status, next.PaymentStatus, s.cfg.Now()
	logger.Ctx(ctx).Info().Str("order", o.ID).Str("from", string(prev)).Str("to", string(o.Status)).Str("actor", actorID).Msg("order transitioned")

	s.publish(ctx, domain.EventStatusChanged, o, o.CustomerID)
	if refund {
		s.publish(ctx, domain.EventOrderRefunded, o, o.CustomerID)
	}
	return o.Status, nil
}

// FindNearbyShippers 以门店坐标为原点查找骑手，只对 READY 订单有效
func (s *OrderApplicationService) FindNearbyShippers(ctx context.Context, orderID string, radiusMeters float64) ([]dispatchdomain.Match, error) {
	ctx, span := s.tracer.Start(ctx, "app.FindNearbyShippers")
	defer span.End()

	if radiusMeters <= 0 {
		radiusMeters = s.cfg.DefaultNearbyRadius
	}
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Float64("dispatch.radius", radiusMeters))

	o, err := s.deps.Repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.StatusReady {
		return nil, apperr.Illegal("order %s is %s, not READY", o.ID, o.Status)
	}
	store, err := s.deps.Stores.FindStore(ctx, o.StoreID)
	if err != nil {
		return nil, err
	}
	return s.finder.FindNearby(ctx, dispatchdomain.Point{Lat: store.Lat, Lng: store.Lng}, radiusMeters)
}

// AssignShipper 为 READY 订单指定骑手，状态不变。
// 已分配给同一骑手时返回 true，已被其他骑手占用时返回 false。
func (s *OrderApplicationService) AssignShipper(ctx context.Context, orderID, shipperID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "app.AssignShipper")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("shipper.id", shipperID))

	if shipperID == "" {
		return false, apperr.Invalid("shipper id is required")
	}
	o, err := s.deps.Repo.FindByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o.Status != domain.StatusReady {
		return false, apperr.Illegal("order %s is %s, shipper can only be assigned while READY", o.ID, o.Status)
	}
	if o.ShipperID != "" {
		return o.ShipperID == shipperID, nil
	}

	ok, err := s.deps.Repo.AssignShipper(ctx, o.ID, shipperID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if !ok {
		// 并发下被抢先，重新读取判断结果
		current, err := s.deps.Repo.FindByID(ctx, o.ID)
		if err != nil {
			return false, err
		}
		if current.ShipperID == "" {
			return false, apperr.Illegal("order %s is %s, shipper can only be assigned while READY", current.ID, current.Status)
		}
		return current.ShipperID == shipperID, nil
	}

	o.ShipperID = shipperID
	logger.Ctx(ctx).Info().Str("order", o.ID).Str("shipper", shipperID).Msg("🛵 shipper assigned")
	s.publish(ctx, domain.EventShipperAssigned, o, o.CustomerID)
	s.publish(ctx, domain.EventShipperAssigned, o, shipperID)
	return true, nil
}

// ConfirmBankingPayment 向网关核实银行转账订单。只读核实后用 compare-and-set 推进，
// 重复的回调与轮询只会有一次返回 true。
// 付款前已被取消的订单若网关报告已付款，款项记为 PAID 并退回钱包。
func (s *OrderApplicationService) ConfirmBankingPayment(ctx context.Context, paymentCode int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "app.ConfirmBankingPayment")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment.order_code", paymentCode))

	o, err := s.deps.Repo.FindByPaymentCode(ctx, paymentCode)
	if err != nil {
		return false, err
	}
	if o.PaymentMethod != domain.PaymentBanking {
		return false, apperr.Invalid("order %s is not paid by bank transfer", o.ID)
	}
	if o.PaymentStatus != domain.PaymentPending || (o.Status != domain.StatusPending && o.Status != domain.StatusCancelled) {
		return false, nil
	}

	v, err := s.deps.Gateway.VerifyIntent(ctx, paymentCode)
	if err != nil {
		span.RecordError(err)
		if s.abandoned(o, err) {
			logger.Ctx(ctx).Warn().Err(err).Str("order", o.ID).Msg("banking order never reached the gateway, abandoning")
			_, err = s.settleBanking(ctx, o, domain.State{Status: domain.StatusCancelled, PaymentStatus: domain.PaymentFailed}, domain.EventPaymentFailed)
			return false, err
		}
		return false, err
	}
	span.SetAttributes(attribute.String("payment.status", string(v.Status)))

	switch {
	case v.Status.Settled() && o.Status == domain.StatusCancelled:
		return s.refundLatePayment(ctx, o, v.SettledAmount)
	case v.Status.Settled():
		if v.SettledAmount.LessThan(o.TotalAmount) {
			logger.Ctx(ctx).Error().Str("order", o.ID).Str("paid", v.SettledAmount.String()).Str("total", o.TotalAmount.String()).Msg("underpaid banking order left pending")
			return false, nil
		}
		return s.settleBanking(ctx, o, domain.State{Status: domain.StatusConfirmed, PaymentStatus: domain.PaymentPaid}, domain.EventPaymentConfirmed)
	case v.Status.Terminal():
		_, err := s.settleBanking(ctx, o, domain.State{Status: domain.StatusCancelled, PaymentStatus: domain.PaymentFailed}, domain.EventPaymentFailed)
		return false, err
	default:
		return false, nil
	}
}

// abandoned 网关查不到付款单且已超过有效期加宽限期
func (s *OrderApplicationService) abandoned(o *domain.Order, err error) bool {
	if !errors.Is(err, apperr.ErrGatewayUnavailable) {
		return false
	}
	return s.cfg.Now().After(o.CreatedAt.Add(s.cfg.IntentTTL + s.cfg.VerifyGrace))
}

func (s *OrderApplicationService) settleBanking(ctx context.Context, o *domain.Order, next domain.State, event domain.EventType) (bool, error) {
	var applied bool
	err := s.deps.Txm.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := s.deps.Repo.UpdateState(txCtx, o.ID, o.State(), next)
		applied = ok
		return err
	})
	if err != nil || !applied {
		return false, err
	}
	o.Status, o.PaymentStatus, o.UpdatedAt = next.Status, next.PaymentStatus, s.cfg.Now()

	if next.PaymentStatus == domain.PaymentPaid {
		if err := s.deps.Carts.Consume(ctx, o.CustomerID, o.Items); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order", o.ID).Msg("failed to consume cart after payment")
		}
		if store, err := s.deps.Stores.FindStore(ctx, o.StoreID); err == nil {
			s.publish(ctx, domain.EventOrderPlaced, o, store.OwnerID)
		}
	}
	logger.Ctx(ctx).Info().Str("order", o.ID).Str("payment", string(o.PaymentStatus)).Msg("banking payment resolved")
	s.publish(ctx, event, o, o.CustomerID)
	return true, nil
}

// refundLatePayment 已取消订单收到转账：标记已付款并在同一事务里退回钱包
func (s *OrderApplicationService) refundLatePayment(ctx context.Context, o *domain.Order, paid decimal.Decimal) (bool, error) {
	next := domain.State{Status: domain.StatusCancelled, PaymentStatus: domain.PaymentPaid}
	var applied bool
	err := s.deps.Txm.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := s.deps.Repo.UpdateState(txCtx, o.ID, o.State(), next)
		if err != nil || !ok {
			return err
		}
		applied = true
		if !paid.IsPositive() {
			return nil
		}
		return s.deps.Ledger.RefundOrder(txCtx, o.CustomerID, paid, "Refund for cancelled order "+o.Code, o.ID)
	})
	if err != nil || !applied {
		return false, err
	}
	o.PaymentStatus, o.UpdatedAt = next.PaymentStatus, s.cfg.Now()

	logger.Ctx(ctx).Warn().Str("order", o.ID).Str("paid", paid.String()).Msg("💸 payment arrived after cancellation, refunded to wallet")
	s.publish(ctx, domain.EventPaymentConfirmed, o, o.CustomerID)
	s.publish(ctx, domain.EventOrderRefunded, o, o.CustomerID)
	return true, nil
}

// PendingBankingCodes 返回创建超过 olderThan 仍未支付的银行转账订单的支付单号
func (s *OrderApplicationService) PendingBankingCodes(ctx context.Context, olderThan time.Duration, limit int) ([]int64, error) {
	orders, err := s.deps.Repo.ListPendingPayments(ctx, domain.PaymentBanking, s.cfg.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list pending banking orders")
	}
	out := make([]int64, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.PaymentCode)
	}
	return out, nil
}

// HasPaymentCode 判断支付单号是否属于某个订单
func (s *OrderApplicationService) HasPaymentCode(ctx context.Context, code int64) (bool, error) {
	_, err := s.deps.Repo.FindByPaymentCode(ctx, code)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *OrderApplicationService) publish(ctx context.Context, t domain.EventType, o *domain.Order, recipient string) {
	if recipient == "" {
		return
	}
	s.deps.Notifier.Publish(ctx, domain.Event{Type: t, Recipient: recipient, Order: o, At: s.cfg.Now()})
}
