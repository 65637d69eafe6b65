package application

import "github.com/shopspring/decimal"

// QuoteRequest 是试算优惠的请求
type QuoteRequest struct {
	VoucherID   string          `json:"-"`
	CustomerID  string          `json:"-"`
	StoreID     string          `json:"store_id"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
}

// QuoteResponse 是试算结果
type QuoteResponse struct {
	VoucherID      string          `json:"voucher_id"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Applicable     bool            `json:"applicable"`
}
