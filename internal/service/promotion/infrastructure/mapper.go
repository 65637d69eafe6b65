package infrastructure

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"nexus-delivery/internal/service/promotion/domain"
)

func nullableDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// ToDomainVoucher 将数据库模型转换为领域模型
func ToDomainVoucher(m *VoucherModel) *domain.Voucher {
	if m == nil {
		return nil
	}
	return &domain.Voucher{
		ID:                m.ID,
		Code:              m.Code,
		DiscountValue:     m.DiscountValue,
		MinOrderValue:     nullableDecimal(m.MinOrderValue),
		MaxDiscountAmount: nullableDecimal(m.MaxDiscountAmount),
		IsActive:          m.IsActive,
		ValidFrom:         nullableTime(m.ValidFrom),
		ValidTo:           nullableTime(m.ValidTo),
		Condition:         m.Condition,
	}
}

// ToVoucherModel 将领域模型转换为数据库模型
func ToVoucherModel(v *domain.Voucher) *VoucherModel {
	m := &VoucherModel{
		ID:            v.ID,
		Code:          v.Code,
		DiscountValue: v.DiscountValue,
		IsActive:      v.IsActive,
		Condition:     v.Condition,
	}
	if v.MinOrderValue != nil {
		m.MinOrderValue = decimal.NewNullDecimal(*v.MinOrderValue)
	}
	if v.MaxDiscountAmount != nil {
		m.MaxDiscountAmount = decimal.NewNullDecimal(*v.MaxDiscountAmount)
	}
	if v.ValidFrom != nil {
		m.ValidFrom = sql.NullTime{Time: *v.ValidFrom, Valid: true}
	}
	if v.ValidTo != nil {
		m.ValidTo = sql.NullTime{Time: *v.ValidTo, Valid: true}
	}
	return m
}
