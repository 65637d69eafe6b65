package infrastructure

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/service/promotion/domain"
)

// GormVoucherRepository 是 VoucherRepository 的 GORM 实现
type GormVoucherRepository struct {
	db *gorm.DB
}

// NewGormVoucherRepository 创建一个新的 GORM 仓储实例
func NewGormVoucherRepository(db *gorm.DB) *GormVoucherRepository {
	return &GormVoucherRepository{db: db}
}

func (r *GormVoucherRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&VoucherModel{})
}

func (r *GormVoucherRepository) find(ctx context.Context, query, arg string) (*domain.Voucher, error) {
	var model VoucherModel
	err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("voucher %s not found", arg)
		}
		return nil, err
	}
	return ToDomainVoucher(&model), nil
}

// FindByID 按 ID 查找优惠券
func (r *GormVoucherRepository) FindByID(ctx context.Context, id string) (*domain.Voucher, error) {
	return r.find(ctx, "id = ?", id)
}

// FindByCode 按券码查找优惠券
func (r *GormVoucherRepository) FindByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	return r.find(ctx, "code = ?", code)
}

// Save 新增或覆盖一张优惠券，后台运营与测试数据使用
func (r *GormVoucherRepository) Save(ctx context.Context, v *domain.Voucher) error {
	return r.db.WithContext(ctx).Save(ToVoucherModel(v)).Error
}
