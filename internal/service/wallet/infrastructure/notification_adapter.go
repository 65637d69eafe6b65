package infrastructure

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"nexus-delivery/internal/pkg/notify"
)

// NotificationAdapter 实现了 port.Notifier，把钱包事件交给异步派发器。
type NotificationAdapter struct {
	dispatcher *notify.Dispatcher
}

func NewNotificationAdapter(dispatcher *notify.Dispatcher) *NotificationAdapter {
	return &NotificationAdapter{dispatcher: dispatcher}
}

func (a *NotificationAdapter) TopUpCompleted(ctx context.Context, userID string, amount, balance decimal.Decimal) {
	a.dispatcher.Notify(ctx, notify.Event{
		UserID:  userID,
		Type:    "TOPUP_COMPLETED",
		Title:   "Top-up successful",
		Message: fmt.Sprintf("Your wallet was credited %s. New balance: %s.", amount.StringFixed(0), balance.StringFixed(0)),
		Data:    map[string]string{"amount": amount.String(), "balance": balance.String()},
	})
}

func (a *NotificationAdapter) TopUpFailed(ctx context.Context, userID string, externalCode int64) {
	a.dispatcher.Notify(ctx, notify.Event{
		UserID:  userID,
		Type:    "TOPUP_FAILED",
		Title:   "Top-up not completed",
		Message: "Your top-up was cancelled or expired before payment.",
		Data:    map[string]string{"code": strconv.FormatInt(externalCode, 10)},
	})
}
