package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/dberr"
	"nexus-delivery/internal/pkg/txn"
	"nexus-delivery/internal/service/wallet/domain"
)

// GormWalletRepository 是 WalletRepository 的 GORM 实现
type GormWalletRepository struct {
	db *gorm.DB
}

func NewGormWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

// AutoMigrate 创建或更新账本相关的表
func (r *GormWalletRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&WalletModel{}, &WalletTransactionModel{})
}

func (r *GormWalletRepository) findOne(ctx context.Context, query string, arg any) (*domain.Wallet, error) {
	var m WalletModel
	err := txn.DB(ctx, r.db).Where(query, arg).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrWalletNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query wallet")
	}
	return toDomainWallet(&m), nil
}

func (r *GormWalletRepository) FindByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	return r.findOne(ctx, "user_id = ?", userID)
}

func (r *GormWalletRepository) FindByID(ctx context.Context, walletID string) (*domain.Wallet, error) {
	return r.findOne(ctx, "id = ?", walletID)
}

func (r *GormWalletRepository) Create(ctx context.Context, w *domain.Wallet) error {
	err := txn.DB(ctx, r.db).Create(toWalletModel(w)).Error
	if dberr.IsDuplicate(err) {
		return apperr.ErrDuplicate
	}
	return errors.Wrap(err, "create wallet")
}

// AdjustBalance 使用条件更新，保证并发下余额不会被扣成负数
func (r *GormWalletRepository) AdjustBalance(ctx context.Context, walletID string, delta decimal.Decimal) error {
	res := txn.DB(ctx, r.db).Model(&WalletModel{}).
		Where("id = ? AND balance + CAST(? AS DECIMAL(18,2)) >= 0", walletID, delta).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + CAST(? AS DECIMAL(18,2))", delta),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "adjust wallet balance")
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := r.FindByID(ctx, walletID); err != nil {
		return err
	}
	return apperr.ErrInsufficientBalance
}

func (r *GormWalletRepository) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	err := txn.DB(ctx, r.db).Create(toTransactionModel(tx)).Error
	if dberr.IsDuplicate(err) {
		return apperr.ErrDuplicate
	}
	return errors.Wrap(err, "append wallet transaction")
}

func (r *GormWalletRepository) FindTransactionByExternalCode(ctx context.Context, code int64) (*domain.Transaction, error) {
	var m WalletTransactionModel
	err := txn.DB(ctx, r.db).Where("external_code = ?", code).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("transaction with external code %d not found", code)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query wallet transaction")
	}
	return toDomainTransaction(&m), nil
}

func (r *GormWalletRepository) casStatus(ctx context.Context, txID string, updates map[string]any) (bool, error) {
	res := txn.DB(ctx, r.db).Model(&WalletTransactionModel{}).
		Where("id = ? AND status = ?", txID, string(domain.TxPending)).
		Updates(updates)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "update wallet transaction status")
	}
	return res.RowsAffected == 1, nil
}

func (r *GormWalletRepository) SettleTransaction(ctx context.Context, txID string, amount decimal.Decimal, at time.Time) (bool, error) {
	return r.casStatus(ctx, txID, map[string]any{
		"status":     string(domain.TxSuccess),
		"amount":     amount,
		"settled_at": at,
	})
}

func (r *GormWalletRepository) FailTransaction(ctx context.Context, txID string, at time.Time) (bool, error) {
	return r.casStatus(ctx, txID, map[string]any{
		"status":     string(domain.TxFailed),
		"settled_at": at,
	})
}

func (r *GormWalletRepository) SumAmounts(ctx context.Context, walletID string) (decimal.Decimal, error) {
	var out struct {
		Total decimal.NullDecimal
	}
	err := txn.DB(ctx, r.db).Model(&WalletTransactionModel{}).
		Where("wallet_id = ?", walletID).
		Select("SUM(amount) AS total").Scan(&out).Error
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "sum wallet transactions")
	}
	if !out.Total.Valid {
		return decimal.Zero, nil
	}
	return out.Total.Decimal, nil
}

func (r *GormWalletRepository) ListTransactions(ctx context.Context, walletID string, limit int) ([]*domain.Transaction, error) {
	var models []WalletTransactionModel
	q := txn.DB(ctx, r.db).Where("wallet_id = ?", walletID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list wallet transactions")
	}
	return toDomainTransactions(models), nil
}

func (r *GormWalletRepository) ListPendingDeposits(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Transaction, error) {
	var models []WalletTransactionModel
	q := txn.DB(ctx, r.db).
		Where("type = ? AND status = ? AND created_at < ?", string(domain.TxDeposit), string(domain.TxPending), createdBefore).
		Order("created_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list pending deposits")
	}
	return toDomainTransactions(models), nil
}

func toDomainTransactions(models []WalletTransactionModel) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(models))
	for i := range models {
		out = append(out, toDomainTransaction(&models[i]))
	}
	return out
}
