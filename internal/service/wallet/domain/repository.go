package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// WalletRepository 是钱包与流水的持久化端口。
//
// 写操作都从 ctx 中加入当前事务（见 txn 包）。
type WalletRepository interface {
	FindByUserID(ctx context.Context, userID string) (*Wallet, error)
	FindByID(ctx context.Context, walletID string) (*Wallet, error)
	// Create 在 user_id 冲突时返回 apperr.ErrDuplicate。
	Create(ctx context.Context, w *Wallet) error
	// AdjustBalance 原子地执行 balance += delta，结果为负时返回 ErrInsufficientBalance 且不修改。
	AdjustBalance(ctx context.Context, walletID string, delta decimal.Decimal) error

	AppendTransaction(ctx context.Context, tx *Transaction) error
	FindTransactionByExternalCode(ctx context.Context, code int64) (*Transaction, error)
	// SettleTransaction 仅当流水仍为 PENDING 时把它改为 SUCCESS 并写入金额，返回是否由本次调用完成。
	SettleTransaction(ctx context.Context, txID string, amount decimal.Decimal, at time.Time) (bool, error)
	// FailTransaction 仅当流水仍为 PENDING 时把它改为 FAILED。
	FailTransaction(ctx context.Context, txID string, at time.Time) (bool, error)
	SumAmounts(ctx context.Context, walletID string) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, walletID string, limit int) ([]*Transaction, error)
	ListPendingDeposits(ctx context.Context, createdBefore time.Time, limit int) ([]*Transaction, error)
}
