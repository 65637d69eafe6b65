package txn

import (
	"context"

	"gorm.io/gorm"
)

type gormKey struct{}

// GormManager 用 gorm 事务实现 Manager。
type GormManager struct {
	db *gorm.DB
}

// NewGormManager 创建 gorm 事务管理器。
func NewGormManager(db *gorm.DB) *GormManager {
	return &GormManager{db: db}
}

func (m *GormManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(gormKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, gormKey{}, tx))
	})
}

// DB 返回 ctx 中的事务句柄；没有事务时返回 db 本身。
func DB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(gormKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
