package domain

import "context"

// VoucherRepository 是优惠券的只读仓储。找不到时返回 apperr.ErrNotFound 类错误。
type VoucherRepository interface {
	FindByID(ctx context.Context, id string) (*Voucher, error)
	FindByCode(ctx context.Context, code string) (*Voucher, error)
}
