package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/txn"
	"nexus-delivery/internal/service/order/domain"
)

// MemoryOrderRepository 是进程内实现，配合 txn.MemoryManager 支持回滚
type MemoryOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = make([]domain.LineItem, len(o.Items))
	for i, li := range o.Items {
		li.Toppings = append([]domain.ToppingSnapshot(nil), li.Toppings...)
		c.Items[i] = li
	}
	return &c
}

func (r *MemoryOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == order.ID || o.Code == order.Code || o.PaymentCode == order.PaymentCode {
			return apperr.ErrDuplicate
		}
	}
	r.orders[order.ID] = cloneOrder(order)
	txn.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.orders, order.ID)
	})
	return nil
}

func (r *MemoryOrderRepository) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperr.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepository) FindByPaymentCode(_ context.Context, code int64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PaymentCode == code {
			return cloneOrder(o), nil
		}
	}
	return nil, apperr.ErrOrderNotFound
}

func (r *MemoryOrderRepository) UpdateState(ctx context.Context, id string, expect, next domain.State) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.State() != expect {
		return false, nil
	}
	prevUpdated := o.UpdatedAt
	o.Status, o.PaymentStatus, o.UpdatedAt = next.Status, next.PaymentStatus, time.Now()
	txn.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		o.Status, o.PaymentStatus, o.UpdatedAt = expect.Status, expect.PaymentStatus, prevUpdated
	})
	return true, nil
}

func (r *MemoryOrderRepository) AssignShipper(ctx context.Context, id, shipperID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != domain.StatusReady || o.ShipperID != "" {
		return false, nil
	}
	o.ShipperID = shipperID
	txn.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		o.ShipperID = ""
	})
	return true, nil
}

func (r *MemoryOrderRepository) ListPendingPayments(_ context.Context, method domain.PaymentMethod, createdBefore time.Time, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		awaiting := o.Status == domain.StatusPending || o.Status == domain.StatusCancelled
		if o.PaymentMethod == method && awaiting &&
			o.PaymentStatus == domain.PaymentPending && o.CreatedAt.Before(createdBefore) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
