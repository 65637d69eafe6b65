package interfaces

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/httpx"
	"nexus-delivery/internal/service/wallet/application"
)

const defaultHistoryLimit = 20

// WalletHandler 封装了钱包的 HTTP 处理器
type WalletHandler struct {
	service *application.LedgerService
}

func NewWalletHandler(service *application.LedgerService) *WalletHandler {
	return &WalletHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *WalletHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/wallets/me", h.handleGetWallet)
	mux.HandleFunc("GET /api/wallets/me/transactions", h.handleHistory)
	mux.HandleFunc("POST /api/wallets/me/topups", h.handleRequestTopUp)
	mux.HandleFunc("POST /api/wallets/topups/{code}/confirm", h.handleConfirmTopUp)
	mux.HandleFunc("POST /internal/wallets/debits", h.handleDebitForOrder)
	mux.HandleFunc("GET /internal/wallets/{id}/reconciliation", h.handleReconcile)
}

func (h *WalletHandler) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	userID, ok := httpx.ActorID(w, r)
	if !ok {
		return
	}
	wallet, err := h.service.GetBalance(ctx, userID)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, application.NewWalletView(wallet))
}

func (h *WalletHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	userID, ok := httpx.ActorID(w, r)
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(ctx, w, apperr.Invalid("limit must be a positive integer"))
			return
		}
		limit = n
	}
	txs, err := h.service.History(ctx, userID, limit)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	views := make([]*application.TransactionView, 0, len(txs))
	for _, t := range txs {
		views = append(views, application.NewTransactionView(t))
	}
	httpx.WriteJSON(w, http.StatusOK, views)
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *WalletHandler) handleRequestTopUp(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	userID, ok := httpx.ActorID(w, r)
	if !ok {
		return
	}
	var req topUpRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.service.RequestTopUp(ctx, userID, req.Amount)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, res)
}

func (h *WalletHandler) handleConfirmTopUp(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	code, err := strconv.ParseInt(r.PathValue("code"), 10, 64)
	if err != nil {
		httpx.WriteError(ctx, w, apperr.Invalid("code must be numeric"))
		return
	}
	applied, err := h.service.ConfirmTopUp(ctx, code)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

type debitRequest struct {
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	OrderID     string          `json:"order_id"`
}

func (h *WalletHandler) handleDebitForOrder(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	var req debitRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || req.OrderID == "" {
		httpx.WriteError(ctx, w, apperr.Invalid("user_id and order_id are required"))
		return
	}
	paid, err := h.service.DebitForOrder(ctx, req.UserID, req.Amount, req.Description, req.OrderID)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"paid": paid})
}

func (h *WalletHandler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	rec, err := h.service.Reconcile(ctx, r.PathValue("id"))
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}
