package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/dberr"
	"nexus-delivery/internal/pkg/txn"
	"nexus-delivery/internal/service/order/domain"
)

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&OrderModel{}, &OrderItemModel{}, &OrderItemToppingModel{})
}

// Create 连同行项目与加料一次写入；任何一行失败整单回滚
func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m := toOrderModel(order)
	err := txn.DB(ctx, r.db).Session(&gorm.Session{FullSaveAssociations: true}).Create(m).Error
	if dberr.IsDuplicate(err) {
		return apperr.ErrDuplicate
	}
	return errors.Wrap(err, "create order")
}

func (r *GormOrderRepository) findOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	var m OrderModel
	err := txn.DB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Items.Toppings", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where(query, arg).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}
	return toDomainOrder(&m), nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *GormOrderRepository) FindByPaymentCode(ctx context.Context, code int64) (*domain.Order, error) {
	return r.findOne(ctx, "payment_code = ?", code)
}

func (r *GormOrderRepository) UpdateState(ctx context.Context, id string, expect, next domain.State) (bool, error) {
	res := txn.DB(ctx, r.db).Model(&OrderModel{}).
		Where("id = ? AND status = ? AND payment_status = ?", id, string(expect.Status), string(expect.PaymentStatus)).
		Updates(map[string]any{
			"status":         string(next.Status),
			"payment_status": string(next.PaymentStatus),
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "update order state")
	}
	return res.RowsAffected == 1, nil
}

func (r *GormOrderRepository) AssignShipper(ctx context.Context, id, shipperID string) (bool, error) {
	res := txn.DB(ctx, r.db).Model(&OrderModel{}).
		Where("id = ? AND status = ? AND shipper_id = ''", id, string(domain.StatusReady)).
		Updates(map[string]any{"shipper_id": shipperID, "updated_at": time.Now()})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "assign shipper")
	}
	return res.RowsAffected == 1, nil
}

func (r *GormOrderRepository) ListPendingPayments(ctx context.Context, method domain.PaymentMethod, createdBefore time.Time, limit int) ([]*domain.Order, error) {
	var models []OrderModel
	q := txn.DB(ctx, r.db).
		Where("payment_method = ? AND payment_status = ? AND status IN ? AND created_at < ?",
			string(method), string(domain.PaymentPending),
			[]string{string(domain.StatusPending), string(domain.StatusCancelled)}, createdBefore).
		Order("created_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list pending payments")
	}
	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		out = append(out, toDomainOrder(&models[i]))
	}
	return out, nil
}
