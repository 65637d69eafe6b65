package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// WalletLocker 串行化同一个钱包上的余额变更。
type WalletLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Notifier 发出钱包相关的用户通知，失败不影响账本。
type Notifier interface {
	TopUpCompleted(ctx context.Context, userID string, amount, balance decimal.Decimal)
	TopUpFailed(ctx context.Context, userID string, externalCode int64)
}
