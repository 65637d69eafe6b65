package adapter

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"nexus-delivery/internal/pkg/apperr"
	walletapp "nexus-delivery/internal/service/wallet/application"
)

// WalletLedgerAdapter 把账本服务适配为 port.WalletLedger
type WalletLedgerAdapter struct {
	ledger *walletapp.LedgerService
}

func NewWalletLedgerAdapter(ledger *walletapp.LedgerService) *WalletLedgerAdapter {
	return &WalletLedgerAdapter{ledger: ledger}
}

// Balance 没有钱包的用户余额视为 0
func (a *WalletLedgerAdapter) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	w, err := a.ledger.GetBalance(ctx, userID)
	if errors.Is(err, apperr.ErrWalletNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

func (a *WalletLedgerAdapter) DebitForOrder(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) (bool, error) {
	return a.ledger.DebitForOrder(ctx, userID, amount, description, orderID)
}

func (a *WalletLedgerAdapter) RefundOrder(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) error {
	_, err := a.ledger.RefundOrder(ctx, userID, amount, description, orderID)
	return err
}
