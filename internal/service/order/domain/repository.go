package domain

import (
	"context"
	"time"
)

// OrderRepository 定义了订单聚合的持久化接口。
// 写操作从 ctx 中加入当前事务。
type OrderRepository interface {
	// Create 原子地保存订单、行项目与加料快照。
	Create(ctx context.Context, order *Order) error

	FindByID(ctx context.Context, id string) (*Order, error)
	FindByPaymentCode(ctx context.Context, code int64) (*Order, error)

	// UpdateState 仅当订单当前处于 expect 时改为 next，返回是否由本次调用完成。
	UpdateState(ctx context.Context, id string, expect, next State) (bool, error)

	// AssignShipper 仅当订单为 READY 且尚未分配骑手时写入 shipperID。
	AssignShipper(ctx context.Context, id, shipperID string) (bool, error)

	// ListPendingPayments 列出创建早于 createdBefore、支付仍未决的订单，包括付款前已取消的。
	ListPendingPayments(ctx context.Context, method PaymentMethod, createdBefore time.Time, limit int) ([]*Order, error)
}
