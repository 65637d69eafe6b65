package rule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-delivery/internal/service/promotion/domain"
)

func TestCELRuleEngineEvaluate(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)
	fact := domain.Fact{
		Subtotal:    decimal.NewFromInt(150000),
		ShippingFee: decimal.NewFromInt(15000),
		StoreID:     "s-1",
		CustomerID:  "c-1",
		At:          time.Date(2025, 3, 18, 11, 30, 0, 0, time.UTC),
	}

	cases := map[string]bool{
		`store_id == "s-1"`:                 true,
		`store_id == "s-2"`:                 false,
		`subtotal >= 100000.0 && hour < 14`: true,
		`shipping_fee > 20000.0`:            false,
		`customer_id in ["c-1", "c-7"]`:     true,
		`weekday == 2`:                      true,
	}
	for expr, want := range cases {
		got, err := engine.Evaluate(expr, fact)
		require.NoError(t, err, expr)
		assert.Equal(t, want, got, expr)
	}
}

func TestCELRuleEngineRejectsBadExpressions(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	_, err = engine.Evaluate(`subtotal +`, domain.Fact{})
	assert.Error(t, err)
	_, err = engine.Evaluate(`subtotal + 1.0`, domain.Fact{})
	assert.Error(t, err, "non-boolean result")
	_, err = engine.Evaluate(`unknown_var == 1`, domain.Fact{})
	assert.Error(t, err)
}

func TestEvaluatorWithCELCondition(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)
	v := &domain.Voucher{DiscountValue: decimal.NewFromInt(10000), IsActive: true, Condition: `store_id == "s-1"`}

	e := domain.NewEvaluator(engine)
	assert.True(t, e.Apply(v, domain.Fact{Subtotal: decimal.NewFromInt(90000), StoreID: "s-1", At: time.Now()}).Equal(decimal.NewFromInt(10000)))
	assert.True(t, e.Apply(v, domain.Fact{Subtotal: decimal.NewFromInt(90000), StoreID: "s-9", At: time.Now()}).IsZero())
}
