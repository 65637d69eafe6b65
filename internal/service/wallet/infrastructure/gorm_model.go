package infrastructure

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"nexus-delivery/internal/service/wallet/domain"
)

// WalletModel 对应 wallets 表
type WalletModel struct {
	ID        string          `gorm:"primaryKey;size:36"`
	UserID    string          `gorm:"size:64;uniqueIndex"`
	Balance   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Currency  string          `gorm:"size:8"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (WalletModel) TableName() string {
	return "wallets"
}

// WalletTransactionModel 对应 wallet_transactions 表；external_code 为空表示非充值流水
type WalletTransactionModel struct {
	ID               string          `gorm:"primaryKey;size:36"`
	WalletID         string          `gorm:"size:36;index:idx_wallet_created,priority:1"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Type             string          `gorm:"size:16"`
	Status           string          `gorm:"size:16;index"`
	Description      string          `gorm:"size:255"`
	ReferenceOrderID string          `gorm:"size:36;index"`
	ExternalCode     sql.NullInt64   `gorm:"uniqueIndex"`
	CreatedAt        time.Time       `gorm:"index:idx_wallet_created,priority:2"`
	SettledAt        sql.NullTime
}

func (WalletTransactionModel) TableName() string {
	return "wallet_transactions"
}

func toWalletModel(w *domain.Wallet) *WalletModel {
	return &WalletModel{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   w.Balance,
		Currency:  w.Currency,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func toDomainWallet(m *WalletModel) *domain.Wallet {
	return &domain.Wallet{
		ID:        m.ID,
		UserID:    m.UserID,
		Balance:   m.Balance,
		Currency:  m.Currency,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toTransactionModel(t *domain.Transaction) *WalletTransactionModel {
	m := &WalletTransactionModel{
		ID:               t.ID,
		WalletID:         t.WalletID,
		Amount:           t.Amount,
		Type:             string(t.Type),
		Status:           string(t.Status),
		Description:      t.Description,
		ReferenceOrderID: t.ReferenceOrderID,
		CreatedAt:        t.CreatedAt,
	}
	if t.ExternalCode != 0 {
		m.ExternalCode = sql.NullInt64{Int64: t.ExternalCode, Valid: true}
	}
	if t.SettledAt != nil {
		m.SettledAt = sql.NullTime{Time: *t.SettledAt, Valid: true}
	}
	return m
}

func toDomainTransaction(m *WalletTransactionModel) *domain.Transaction {
	t := &domain.Transaction{
		ID:               m.ID,
		WalletID:         m.WalletID,
		Amount:           m.Amount,
		Type:             domain.TxType(m.Type),
		Status:           domain.TxStatus(m.Status),
		Description:      m.Description,
		ReferenceOrderID: m.ReferenceOrderID,
		ExternalCode:     m.ExternalCode.Int64,
		CreatedAt:        m.CreatedAt,
	}
	if m.SettledAt.Valid {
		at := m.SettledAt.Time
		t.SettledAt = &at
	}
	return t
}
