package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type stubRules struct {
	ok  bool
	err error
}

func (s stubRules) Evaluate(string, Fact) (bool, error) {
	return s.ok, s.err
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func ptr(v int64) *decimal.Decimal {
	d := dec(v)
	return &d
}

func TestApply(t *testing.T) {
	now := time.Date(2025, 3, 18, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	cases := []struct {
		name    string
		voucher Voucher
		fact    Fact
		want    int64
	}{
		{
			name:    "below minimum order value",
			voucher: Voucher{DiscountValue: dec(20000), MinOrderValue: ptr(200000), IsActive: true},
			fact:    Fact{Subtotal: dec(150000), ShippingFee: dec(15000)},
			want:    0,
		},
		{
			name:    "capped by max discount",
			voucher: Voucher{DiscountValue: dec(50000), MaxDiscountAmount: ptr(30000), IsActive: true},
			fact:    Fact{Subtotal: dec(300000), ShippingFee: dec(15000)},
			want:    30000,
		},
		{
			name:    "plain fixed discount",
			voucher: Voucher{DiscountValue: dec(10000), IsActive: true},
			fact:    Fact{Subtotal: dec(100000), ShippingFee: dec(15000)},
			want:    10000,
		},
		{
			name:    "minimum exactly met",
			voucher: Voucher{DiscountValue: dec(20000), MinOrderValue: ptr(200000), IsActive: true},
			fact:    Fact{Subtotal: dec(200000)},
			want:    20000,
		},
		{
			name:    "inactive",
			voucher: Voucher{DiscountValue: dec(10000)},
			fact:    Fact{Subtotal: dec(100000)},
			want:    0,
		},
		{
			name:    "not yet valid",
			voucher: Voucher{DiscountValue: dec(10000), IsActive: true, ValidFrom: &future},
			fact:    Fact{Subtotal: dec(100000)},
			want:    0,
		},
		{
			name:    "expired",
			voucher: Voucher{DiscountValue: dec(10000), IsActive: true, ValidTo: &past},
			fact:    Fact{Subtotal: dec(100000)},
			want:    0,
		},
		{
			name:    "inside window",
			voucher: Voucher{DiscountValue: dec(10000), IsActive: true, ValidFrom: &past, ValidTo: &future},
			fact:    Fact{Subtotal: dec(100000)},
			want:    10000,
		},
		{
			name:    "clamped to subtotal plus shipping",
			voucher: Voucher{DiscountValue: dec(500000), IsActive: true},
			fact:    Fact{Subtotal: dec(40000), ShippingFee: dec(15000)},
			want:    55000,
		},
		{
			name:    "negative face value floors at zero",
			voucher: Voucher{DiscountValue: dec(-5000), IsActive: true},
			fact:    Fact{Subtotal: dec(40000)},
			want:    0,
		},
	}

	e := NewEvaluator(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fact.At = now
			got := e.Apply(&tc.voucher, tc.fact)
			assert.True(t, got.Equal(dec(tc.want)), "got %s want %d", got, tc.want)
		})
	}
}

func TestApplyCondition(t *testing.T) {
	v := &Voucher{DiscountValue: dec(10000), IsActive: true, Condition: `store_id == "s-1"`}
	fact := Fact{Subtotal: dec(100000), At: time.Now()}

	assert.True(t, NewEvaluator(stubRules{ok: true}).Apply(v, fact).Equal(dec(10000)))
	assert.True(t, NewEvaluator(stubRules{ok: false}).Apply(v, fact).IsZero())
	assert.True(t, NewEvaluator(stubRules{err: errors.New("bad expr")}).Apply(v, fact).IsZero())
	assert.True(t, NewEvaluator(nil).Apply(v, fact).IsZero())
	assert.True(t, NewEvaluator(nil).Apply(nil, fact).IsZero())
}
