package saga

import (
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/service/order/domain"
)

// ValidationHandler 校验支付方式，并发读取购物车、地址与优惠券
type ValidationHandler struct {
	NextHandler
}

func (h *ValidationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Validation")
	defer span.End()

	in := orderCtx.Input
	if in.CustomerID == "" || in.AddressID == "" {
		return apperr.Invalid("customer and address are required")
	}
	method, err := domain.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return err
	}
	orderCtx.Method = method
	span.SetAttributes(attribute.String("order.payment_method", string(method)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cart, err := orderCtx.Carts.Snapshot(gctx, in.CustomerID)
		if err != nil {
			return errors.Wrap(err, "load cart")
		}
		orderCtx.Cart = cart
		return nil
	})
	g.Go(func() error {
		addr, err := orderCtx.Addresses.FindAddress(gctx, in.AddressID)
		if err != nil {
			return err
		}
		orderCtx.Address = addr
		return nil
	})
	if in.VoucherID != "" {
		g.Go(func() error {
			v, err := orderCtx.Vouchers.FindVoucher(gctx, in.VoucherID)
			if err != nil {
				return err
			}
			orderCtx.Voucher = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load order inputs failed")
		return err
	}

	if orderCtx.Cart == nil || len(orderCtx.Cart.Items) == 0 {
		return apperr.ErrEmptyCart
	}
	if orderCtx.Address.UserID != in.CustomerID {
		return apperr.ErrAddressNotOwned
	}
	span.AddEvent("Cart, address and voucher loaded concurrently.")
	return h.executeNext(orderCtx)
}
