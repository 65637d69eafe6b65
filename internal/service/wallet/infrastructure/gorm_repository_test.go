package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/txn"
	"nexus-delivery/internal/service/wallet/domain"
)

func newSQLiteRepo(t *testing.T) (*GormWalletRepository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := NewGormWalletRepository(db)
	require.NoError(t, repo.AutoMigrate())
	return repo, db
}

func seedWallet(t *testing.T, repo *GormWalletRepository, userID string) *domain.Wallet {
	t.Helper()
	w := &domain.Wallet{ID: "w-" + userID, UserID: userID, Balance: decimal.Zero, Currency: "VND", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), w))
	return w
}

func TestGormCreateDuplicateUser(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	seedWallet(t, repo, "u-1")

	err := repo.Create(context.Background(), &domain.Wallet{ID: "other", UserID: "u-1", Balance: decimal.Zero})
	assert.True(t, errors.Is(err, apperr.ErrDuplicate))

	_, err = repo.FindByUserID(context.Background(), "u-2")
	assert.True(t, errors.Is(err, apperr.ErrWalletNotFound))
}

func TestGormAdjustBalanceIsConditional(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	w := seedWallet(t, repo, "u-1")
	ctx := context.Background()

	require.NoError(t, repo.AdjustBalance(ctx, w.ID, decimal.NewFromInt(100000)))
	require.NoError(t, repo.AdjustBalance(ctx, w.ID, decimal.NewFromInt(-40000)))
	err := repo.AdjustBalance(ctx, w.ID, decimal.NewFromInt(-60001))
	assert.True(t, errors.Is(err, apperr.ErrInsufficientBalance))
	err = repo.AdjustBalance(ctx, "missing", decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, apperr.ErrWalletNotFound))

	got, err := repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(60000)), got.Balance.String())
}

func TestGormSettleTransactionOnlyOnce(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	w := seedWallet(t, repo, "u-1")
	ctx := context.Background()
	placeholder := &domain.Transaction{
		ID: "tx-1", WalletID: w.ID, Amount: decimal.Zero, Type: domain.TxDeposit,
		Status: domain.TxPending, ExternalCode: 777, CreatedAt: time.Now(),
	}
	require.NoError(t, repo.AppendTransaction(ctx, placeholder))

	dup := *placeholder
	dup.ID = "tx-2"
	assert.True(t, errors.Is(repo.AppendTransaction(ctx, &dup), apperr.ErrDuplicate))

	ok, err := repo.SettleTransaction(ctx, "tx-1", decimal.NewFromInt(50000), time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.SettleTransaction(ctx, "tx-1", decimal.NewFromInt(50000), time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	tx, err := repo.FindTransactionByExternalCode(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, domain.TxSuccess, tx.Status)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(50000)))
	assert.NotNil(t, tx.SettledAt)
}

func TestGormSumAndListInsideTransaction(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	w := seedWallet(t, repo, "u-1")
	m := txn.NewGormManager(db)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	err := m.WithTx(ctx, func(ctx context.Context) error {
		for i, amt := range []int64{100000, -30000, -20000} {
			if err := repo.AdjustBalance(ctx, w.ID, decimal.NewFromInt(amt)); err != nil {
				return err
			}
			if err := repo.AppendTransaction(ctx, &domain.Transaction{
				ID: "tx-" + string(rune('a'+i)), WalletID: w.ID, Amount: decimal.NewFromInt(amt),
				Type: domain.TxPayment, Status: domain.TxSuccess, CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	sum, err := repo.SumAmounts(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(50000)), sum.String())

	txs, err := repo.ListTransactions(ctx, w.ID, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "tx-c", txs[0].ID)

	pending, err := repo.ListPendingDeposits(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGormRollbackRestoresBalance(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	w := seedWallet(t, repo, "u-1")
	m := txn.NewGormManager(db)
	ctx := context.Background()
	require.NoError(t, repo.AdjustBalance(ctx, w.ID, decimal.NewFromInt(1000)))

	err := m.WithTx(ctx, func(ctx context.Context) error {
		if err := repo.AdjustBalance(ctx, w.ID, decimal.NewFromInt(-1000)); err != nil {
			return err
		}
		return errors.New("order update failed")
	})
	require.Error(t, err)

	got, err := repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1000)))
}
