package infrastructure

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/txn"
	"nexus-delivery/internal/service/order/domain"
)

func TestMemoryRepositoryRollsBackWithTransaction(t *testing.T) {
	repo := NewMemoryOrderRepository()
	txm := txn.NewMemoryManager()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder(t, "o-1", "FD260101000001", 1001, domain.PaymentWallet)))

	pending := domain.State{Status: domain.StatusPending, PaymentStatus: domain.PaymentPending}
	paid := domain.State{Status: domain.StatusConfirmed, PaymentStatus: domain.PaymentPaid}
	err := txm.WithTx(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, newOrder(t, "o-2", "FD260101000002", 1002, domain.PaymentCash)); err != nil {
			return err
		}
		if _, err := repo.UpdateState(ctx, "o-1", pending, paid); err != nil {
			return err
		}
		return apperr.ErrInsufficientBalance
	})
	assert.True(t, errors.Is(err, apperr.ErrInsufficientBalance))

	_, err = repo.FindByID(ctx, "o-2")
	assert.True(t, errors.Is(err, apperr.ErrOrderNotFound))
	got, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, pending, got.State())
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder(t, "o-1", "FD260101000001", 1001, domain.PaymentCash)))

	got, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	got.Items[0].Toppings[0].Name = "mutated"

	again, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "Egg", again.Items[0].Toppings[0].Name)

	err = repo.Create(ctx, newOrder(t, "o-9", "FD260101000001", 9, domain.PaymentCash))
	assert.True(t, errors.Is(err, apperr.ErrDuplicate))
}
