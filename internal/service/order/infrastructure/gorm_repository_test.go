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
	"nexus-delivery/internal/service/order/domain"
)

func newSQLiteRepo(t *testing.T) (*GormOrderRepository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := NewGormOrderRepository(db)
	require.NoError(t, repo.AutoMigrate())
	return repo, db
}

func newOrder(t *testing.T, id, code string, paymentCode int64, method domain.PaymentMethod) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder(domain.Draft{
		ID: id, Code: code, PaymentCode: paymentCode, CustomerID: "c-1", StoreID: "s-1",
		Items: []domain.LineItem{
			{ProductID: "p-1", ProductName: "Com tam", VariantName: "Suon", UnitPrice: decimal.NewFromInt(45000), Quantity: 1,
				Toppings: []domain.ToppingSnapshot{{Name: "Egg", Price: decimal.NewFromInt(5000)}, {Name: "Cha", Price: decimal.NewFromInt(7000)}}},
			{ProductID: "p-2", ProductName: "Canh", UnitPrice: decimal.NewFromInt(10000), Quantity: 3},
		},
		ShippingFee:     decimal.NewFromInt(15000),
		PaymentMethod:   method,
		DeliveryAddress: "1 Dong Khoi",
		At:              time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	return o
}

func TestGormCreateAndLoadSnapshots(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()
	o := newOrder(t, "o-1", "FD260101000001", 1001, domain.PaymentCash)
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(102000)), got.TotalAmount.String())
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Com tam", got.Items[0].ProductName)
	require.Len(t, got.Items[0].Toppings, 2)
	assert.Equal(t, "Egg", got.Items[0].Toppings[0].Name)
	assert.Empty(t, got.Items[1].Toppings)

	byCode, err := repo.FindByPaymentCode(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, "o-1", byCode.ID)

	_, err = repo.FindByID(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrOrderNotFound))
}

func TestGormCreateRejectsDuplicateCode(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder(t, "o-1", "FD260101000001", 1001, domain.PaymentCash)))

	err := repo.Create(ctx, newOrder(t, "o-2", "FD260101000001", 1002, domain.PaymentCash))
	assert.True(t, errors.Is(err, apperr.ErrDuplicate))
}

func TestGormCreateRollsBackWithTransaction(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	ctx := context.Background()
	txm := txn.NewGormManager(db)

	err := txm.WithTx(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, newOrder(t, "o-1", "FD260101000001", 1001, domain.PaymentCash)); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	_, err = repo.FindByID(ctx, "o-1")
	assert.True(t, errors.Is(err, apperr.ErrOrderNotFound))
	var items int64
	require.NoError(t, db.Model(&OrderItemModel{}).Count(&items).Error)
	assert.Zero(t, items)
}

func TestGormUpdateStateIsCompareAndSet(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder(t, "o-1", "FD260101000001", 1001, domain.PaymentWallet)))

	pending := domain.State{Status: domain.StatusPending, PaymentStatus: domain.PaymentPending}
	paid := domain.State{Status: domain.StatusConfirmed, PaymentStatus: domain.PaymentPaid}

	ok, err := repo.UpdateState(ctx, "o-1", pending, paid)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.UpdateState(ctx, "o-1", pending, paid)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, paid, got.State())
}

func TestGormAssignShipperOnlyWhenReadyAndFree(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder(t, "o-1", "FD260101000001", 1001, domain.PaymentCash)))

	ok, err := repo.AssignShipper(ctx, "o-1", "shipper-1")
	require.NoError(t, err)
	assert.False(t, ok, "PENDING orders cannot take a shipper")

	ok, err = repo.UpdateState(ctx, "o-1",
		domain.State{Status: domain.StatusPending, PaymentStatus: domain.PaymentPending},
		domain.State{Status: domain.StatusReady, PaymentStatus: domain.PaymentPending})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.AssignShipper(ctx, "o-1", "shipper-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.AssignShipper(ctx, "o-1", "shipper-2")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "shipper-1", got.ShipperID)
}

func TestGormListPendingPayments(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder(t, "o-1", "FD260101000001", 1001, domain.PaymentBanking)))
	require.NoError(t, repo.Create(ctx, newOrder(t, "o-2", "FD260101000002", 1002, domain.PaymentCash)))
	require.NoError(t, repo.Create(ctx, newOrder(t, "o-3", "FD260101000003", 1003, domain.PaymentBanking)))
	_, err := repo.UpdateState(ctx, "o-3",
		domain.State{Status: domain.StatusPending, PaymentStatus: domain.PaymentPending},
		domain.State{Status: domain.StatusConfirmed, PaymentStatus: domain.PaymentPaid})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, newOrder(t, "o-4", "FD260101000004", 1004, domain.PaymentBanking)))
	_, err = repo.UpdateState(ctx, "o-4",
		domain.State{Status: domain.StatusPending, PaymentStatus: domain.PaymentPending},
		domain.State{Status: domain.StatusCancelled, PaymentStatus: domain.PaymentPending})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, newOrder(t, "o-5", "FD260101000005", 1005, domain.PaymentBanking)))
	_, err = repo.UpdateState(ctx, "o-5",
		domain.State{Status: domain.StatusPending, PaymentStatus: domain.PaymentPending},
		domain.State{Status: domain.StatusCancelled, PaymentStatus: domain.PaymentFailed})
	require.NoError(t, err)

	got, err := repo.ListPendingPayments(ctx, domain.PaymentBanking, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	codes := make([]int64, 0, len(got))
	for _, o := range got {
		codes = append(codes, o.PaymentCode)
	}
	assert.ElementsMatch(t, []int64{1001, 1004}, codes, "cancelled orders with an open payment are still polled")

	got, err = repo.ListPendingPayments(ctx, domain.PaymentBanking, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
