package infrastructure

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// VoucherModel 对应数据库中的 vouchers 表
type VoucherModel struct {
	ID                string              `gorm:"primaryKey;size:36"`
	Code              string              `gorm:"size:64;uniqueIndex"`
	Name              string              `gorm:"size:128"`
	DiscountValue     decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	MinOrderValue     decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	MaxDiscountAmount decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	IsActive          bool
	ValidFrom         sql.NullTime
	ValidTo           sql.NullTime
	Condition         string `gorm:"column:condition_expr;type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName 指定 GORM 应该使用的表名
func (VoucherModel) TableName() string {
	return "vouchers"
}
