package domain

import (
	"github.com/shopspring/decimal"
)

// RuleEngine 评估优惠券的附加条件表达式。
type RuleEngine interface {
	Evaluate(expression string, fact Fact) (bool, error)
}

// Evaluator 计算一张优惠券对一笔订单的折扣金额。
type Evaluator struct {
	rules RuleEngine
}

func NewEvaluator(rules RuleEngine) *Evaluator {
	return &Evaluator{rules: rules}
}

// Apply 依次检查：启用与有效期、附加条件、最低消费，然后取面值并按上限封顶，
// 最终结果落在 [0, subtotal + shippingFee] 内。任何一条不满足都返回 0，不报错。
func (e *Evaluator) Apply(v *Voucher, fact Fact) decimal.Decimal {
	if v == nil || !v.ActiveAt(fact.At) {
		return decimal.Zero
	}
	if v.Condition != "" {
		if e.rules == nil {
			return decimal.Zero
		}
		ok, err := e.rules.Evaluate(v.Condition, fact)
		if err != nil || !ok {
			return decimal.Zero
		}
	}
	if v.MinOrderValue != nil && fact.Subtotal.LessThan(*v.MinOrderValue) {
		return decimal.Zero
	}

	discount := v.DiscountValue
	if v.MaxDiscountAmount != nil && discount.GreaterThan(*v.MaxDiscountAmount) {
		discount = *v.MaxDiscountAmount
	}
	ceiling := fact.Subtotal.Add(fact.ShippingFee)
	if discount.GreaterThan(ceiling) {
		discount = ceiling
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount
}
