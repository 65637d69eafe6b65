package rule

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"nexus-delivery/internal/service/promotion/domain"
)

// CELRuleEngine 是 domain.RuleEngine 的实现，用 CEL 表达式描述优惠券的附加条件。
//
// 可用变量：subtotal、shipping_fee（double），store_id、customer_id（string），
// hour（0-23）、weekday（0 表示周日）。
type CELRuleEngine struct {
	env      *cel.Env
	programs sync.Map // expression -> cel.Program
}

// NewCELRuleEngine 创建规则引擎。
func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("shipping_fee", cel.DoubleType),
		cel.Variable("store_id", cel.StringType),
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("weekday", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &CELRuleEngine{env: env}, nil
}

// Compile 校验表达式并缓存编译结果，表达式必须返回 bool。
func (e *CELRuleEngine) Compile(expression string) (cel.Program, error) {
	if prg, ok := e.programs.Load(expression); ok {
		return prg.(cel.Program), nil
	}
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile voucher condition: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("voucher condition must be boolean, got %s", ast.OutputType())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build voucher condition: %w", err)
	}
	e.programs.Store(expression, prg)
	return prg, nil
}

// Evaluate 实现了 domain.RuleEngine 接口。
func (e *CELRuleEngine) Evaluate(expression string, fact domain.Fact) (bool, error) {
	prg, err := e.Compile(expression)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"subtotal":     fact.Subtotal.InexactFloat64(),
		"shipping_fee": fact.ShippingFee.InexactFloat64(),
		"store_id":     fact.StoreID,
		"customer_id":  fact.CustomerID,
		"hour":         int64(fact.At.Hour()),
		"weekday":      int64(fact.At.Weekday()),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate voucher condition: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("voucher condition returned %T", out.Value())
	}
	return result, nil
}
