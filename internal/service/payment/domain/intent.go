// Package domain 描述与第三方支付网关交互的模型。
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// IntentStatus 是网关侧支付单的状态。
type IntentStatus string

const (
	IntentPending   IntentStatus = "PENDING"
	IntentPaid      IntentStatus = "PAID"
	IntentExpired   IntentStatus = "EXPIRED"
	IntentCancelled IntentStatus = "CANCELLED"
	IntentFailed    IntentStatus = "FAILED"
)

// Terminal 表示支付单不会再变化。
func (s IntentStatus) Terminal() bool {
	return s != IntentPending
}

// Settled 表示资金已到账。
func (s IntentStatus) Settled() bool {
	return s == IntentPaid
}

// IntentRequest 是创建支付单的参数。
type IntentRequest struct {
	OrderCode   int64
	Amount      decimal.Decimal
	Description string
	BuyerName   string
	ExpiresAt   time.Time
}

// Intent 是网关返回给付款人的支付信息。
type Intent struct {
	OrderCode     int64           `json:"order_code"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	CheckoutURL   string          `json:"checkout_url"`
	QRCode        string          `json:"qr_code"`
	AccountNumber string          `json:"account_number"`
	AccountName   string          `json:"account_name"`
	BankBin       string          `json:"bin"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// Verification 是查询支付单得到的结果。
type Verification struct {
	OrderCode     int64
	Status        IntentStatus
	SettledAmount decimal.Decimal
}

// WebhookData 是网关回调中经过验签的数据。
type WebhookData struct {
	OrderCode int64
	Amount    decimal.Decimal
	Success   bool
	Reference string
}

// Gateway 是支付网关的出站端口。VerifyIntent 只读，可以重复调用。
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	VerifyIntent(ctx context.Context, orderCode int64) (*Verification, error)
}
