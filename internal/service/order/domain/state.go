package domain

import (
	"strings"

	"nexus-delivery/internal/pkg/apperr"
)

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending   Status = "PENDING"   // 已创建，等待商家确认或支付
	StatusConfirmed Status = "CONFIRMED" // 商家已接单 / 已付款
	StatusPreparing Status = "PREPARING" // 备餐中
	StatusReady     Status = "READY"     // 待取餐，可分配骑手
	StatusPickedUp  Status = "PICKED_UP" // 骑手已取餐
	StatusCompleted Status = "COMPLETED" // 已送达
	StatusCancelled Status = "CANCELLED" // 已取消
)

// Terminal 表示不再有任何出边的状态
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Action 是驱动状态机的动作
type Action string

const (
	ActionConfirm        Action = "confirm"
	ActionStartPreparing Action = "start_preparing"
	ActionMarkReady      Action = "mark_ready"
	ActionCancel         Action = "cancel"
	ActionPickUp         Action = "pick_up"
	ActionComplete       Action = "complete"
)

// Role 是执行动作的参与方
type Role int

const (
	RoleCustomer Role = 1 << iota
	RoleStoreOwner
	RoleShipper
)

type transition struct {
	from   []Status
	to     Status
	actors Role
}

var transitions = map[Action]transition{
	ActionConfirm:        {from: []Status{StatusPending}, to: StatusConfirmed, actors: RoleStoreOwner},
	ActionStartPreparing: {from: []Status{StatusConfirmed}, to: StatusPreparing, actors: RoleStoreOwner},
	ActionMarkReady:      {from: []Status{StatusPreparing}, to: StatusReady, actors: RoleStoreOwner},
	ActionCancel:         {from: []Status{StatusPending, StatusConfirmed, StatusPreparing}, to: StatusCancelled, actors: RoleCustomer | RoleStoreOwner},
	ActionPickUp:         {from: []Status{StatusReady}, to: StatusPickedUp, actors: RoleShipper},
	ActionComplete:       {from: []Status{StatusPickedUp}, to: StatusCompleted, actors: RoleShipper},
}

// ParseAction 把外部输入转换为 Action
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := transitions[a]; !ok {
		return "", apperr.Invalid("unknown action %q", s)
	}
	return a, nil
}

// Next 返回在 current 状态下执行 action 后的目标状态
func Next(current Status, action Action) (Status, error) {
	t, ok := transitions[action]
	if !ok {
		return "", apperr.Invalid("unknown action %q", action)
	}
	for _, from := range t.from {
		if from == current {
			return t.to, nil
		}
	}
	return "", apperr.Illegal("cannot %s an order in status %s", action, current)
}

// AllowedRoles 返回可以执行 action 的参与方
func AllowedRoles(action Action) Role {
	return transitions[action].actors
}

// PaymentMethod 是下单时选择的支付方式
type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "CASH"
	PaymentWallet  PaymentMethod = "WALLET"
	PaymentBanking PaymentMethod = "BANKING"
)

// ParsePaymentMethod 不区分大小写
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case PaymentCash, PaymentWallet, PaymentBanking:
		return m, nil
	}
	return "", apperr.Invalid("unsupported payment method %q", s)
}

// PaymentStatus 是订单的收款状态
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// State 是订单状态与收款状态的组合，仓储按它做 compare-and-set
type State struct {
	Status        Status
	PaymentStatus PaymentStatus
}
