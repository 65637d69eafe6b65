// Package domain 是钱包账本的领域模型。
//
// 余额的唯一来源是流水：任何时刻 Σ Transaction.Amount == Wallet.Balance，且余额不为负。
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet 是某个用户的钱包。
type Wallet struct {
	ID        string
	UserID    string
	Balance   decimal.Decimal
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TxType 是流水类型。
type TxType string

const (
	TxDeposit  TxType = "DEPOSIT"
	TxWithdraw TxType = "WITHDRAW"
	TxPayment  TxType = "PAYMENT"
	TxRefund   TxType = "REFUND"
)

// Valid 判断是否为已知类型。
func (t TxType) Valid() bool {
	switch t {
	case TxDeposit, TxWithdraw, TxPayment, TxRefund:
		return true
	}
	return false
}

// TxStatus 是流水状态。只有充值占位流水会经历 PENDING。
type TxStatus string

const (
	TxPending TxStatus = "PENDING"
	TxSuccess TxStatus = "SUCCESS"
	TxFailed  TxStatus = "FAILED"
)

// Transaction 是一条不可变的账本流水，Amount 带符号。
type Transaction struct {
	ID               string
	WalletID         string
	Amount           decimal.Decimal
	Type             TxType
	Status           TxStatus
	Description      string
	ReferenceOrderID string
	ExternalCode     int64
	CreatedAt        time.Time
	SettledAt        *time.Time
}

// Reconciliation 是一次对账结果。
type Reconciliation struct {
	WalletID    string          `json:"wallet_id"`
	Balance     decimal.Decimal `json:"balance"`
	LedgerTotal decimal.Decimal `json:"ledger_total"`
	Consistent  bool            `json:"consistent"`
}
