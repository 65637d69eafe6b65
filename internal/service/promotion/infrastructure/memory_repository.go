package infrastructure

import (
	"context"
	"sync"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/service/promotion/domain"
)

// MemoryVoucherRepository 是进程内实现，用于测试。
type MemoryVoucherRepository struct {
	mu       sync.RWMutex
	vouchers map[string]*domain.Voucher
}

func NewMemoryVoucherRepository(vouchers ...*domain.Voucher) *MemoryVoucherRepository {
	r := &MemoryVoucherRepository{vouchers: make(map[string]*domain.Voucher)}
	for _, v := range vouchers {
		r.vouchers[v.ID] = v
	}
	return r
}

func (r *MemoryVoucherRepository) FindByID(_ context.Context, id string) (*domain.Voucher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vouchers[id]
	if !ok {
		return nil, apperr.NotFound("voucher %s not found", id)
	}
	c := *v
	return &c, nil
}

func (r *MemoryVoucherRepository) FindByCode(_ context.Context, code string) (*domain.Voucher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.vouchers {
		if v.Code == code {
			c := *v
			return &c, nil
		}
	}
	return nil, apperr.NotFound("voucher %s not found", code)
}
