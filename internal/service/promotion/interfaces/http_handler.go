package interfaces

import (
	"net/http"

	"nexus-delivery/internal/pkg/httpx"
	"nexus-delivery/internal/service/promotion/application"
)

// PromotionHandler 封装了优惠券的 HTTP 处理器
type PromotionHandler struct {
	service *application.PromotionService
}

// NewPromotionHandler 创建一个新的 HTTP 处理器实例
func NewPromotionHandler(service *application.PromotionService) *PromotionHandler {
	return &PromotionHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *PromotionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/vouchers/{id}/quote", h.handleQuote)
}

func (h *PromotionHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	userID, ok := httpx.ActorID(w, r)
	if !ok {
		return
	}
	var req application.QuoteRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	req.VoucherID = r.PathValue("id")
	req.CustomerID = userID

	resp, err := h.service.Quote(ctx, &req)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
