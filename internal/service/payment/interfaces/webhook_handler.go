package interfaces

import (
	"context"
	"io"
	"net/http"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/httpx"
	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/service/payment/domain"
)

const maxWebhookBody = 64 << 10

type WebhookVerifier interface {
	VerifyWebhook(body []byte) (*domain.WebhookData, error)
}

// DepositConfirmer 是钱包充值一侧。
type DepositConfirmer interface {
	HasDeposit(ctx context.Context, code int64) (bool, error)
	ConfirmTopUp(ctx context.Context, code int64) (bool, error)
}

// OrderConfirmer 是银行转账订单一侧。
type OrderConfirmer interface {
	HasPaymentCode(ctx context.Context, code int64) (bool, error)
	ConfirmBankingPayment(ctx context.Context, code int64) (bool, error)
}

// WebhookHandler 接收网关回调。回调只作为触发信号，最终结果仍以 VerifyIntent 为准。
type WebhookHandler struct {
	verifier WebhookVerifier
	deposits DepositConfirmer
	orders   OrderConfirmer
}

func NewWebhookHandler(verifier WebhookVerifier, deposits DepositConfirmer, orders OrderConfirmer) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, deposits: deposits, orders: orders}
}

func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/payments/webhook", h.handleWebhook)
}

type webhookAck struct {
	Code      string `json:"code"`
	Desc      string `json:"desc"`
	Confirmed bool   `json:"confirmed"`
}

func (h *WebhookHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httpx.WriteError(ctx, w, apperr.Invalid("read webhook body: %v", err))
		return
	}
	data, err := h.verifier.VerifyWebhook(body)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("⚠️ rejected payment webhook")
		httpx.WriteError(ctx, w, err)
		return
	}

	log := logger.Ctx(ctx).With().Int64("payment_code", data.OrderCode).Bool("success", data.Success).Logger()
	confirmed, known, err := h.route(ctx, data.OrderCode)
	if err != nil {
		// 返回非 2xx 让网关重投，轮询也会兜底
		log.Error().Err(err).Msg("payment webhook not applied")
		httpx.WriteError(ctx, w, err)
		return
	}
	if !known {
		log.Warn().Msg("payment webhook for unknown code")
	} else {
		log.Info().Bool("confirmed", confirmed).Msg("payment webhook applied")
	}
	httpx.WriteJSON(w, http.StatusOK, webhookAck{Code: "00", Desc: "success", Confirmed: confirmed})
}

func (h *WebhookHandler) route(ctx context.Context, code int64) (confirmed, known bool, err error) {
	isDeposit, err := h.deposits.HasDeposit(ctx, code)
	if err != nil {
		return false, false, err
	}
	if isDeposit {
		confirmed, err = h.deposits.ConfirmTopUp(ctx, code)
		return confirmed, true, err
	}

	isOrder, err := h.orders.HasPaymentCode(ctx, code)
	if err != nil || !isOrder {
		return false, false, err
	}
	confirmed, err = h.orders.ConfirmBankingPayment(ctx, code)
	return confirmed, true, err
}
