package application

import (
	"time"

	"github.com/shopspring/decimal"

	paymentdomain "nexus-delivery/internal/service/payment/domain"
	"nexus-delivery/internal/service/wallet/domain"
)

// LedgerConfig 是账本服务的可调参数。
type LedgerConfig struct {
	Currency  string
	IntentTTL time.Duration
	Now       func() time.Time
}

// TopUpResult 是发起充值后返回给用户的支付信息。
type TopUpResult struct {
	TransactionID string                `json:"transaction_id"`
	ExternalCode  int64                 `json:"external_code"`
	Payment       *paymentdomain.Intent `json:"payment"`
}

// WalletView 是钱包对外展示的结构。
type WalletView struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user_id"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// TransactionView 是流水对外展示的结构。
type TransactionView struct {
	ID               string          `json:"id"`
	Amount           decimal.Decimal `json:"amount"`
	Type             domain.TxType   `json:"type"`
	Status           domain.TxStatus `json:"status"`
	Description      string          `json:"description"`
	ReferenceOrderID string          `json:"reference_order_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func NewWalletView(w *domain.Wallet) *WalletView {
	return &WalletView{ID: w.ID, UserID: w.UserID, Balance: w.Balance, Currency: w.Currency}
}

func NewTransactionView(t *domain.Transaction) *TransactionView {
	return &TransactionView{
		ID:               t.ID,
		Amount:           t.Amount,
		Type:             t.Type,
		Status:           t.Status,
		Description:      t.Description,
		ReferenceOrderID: t.ReferenceOrderID,
		CreatedAt:        t.CreatedAt,
	}
}
