package interfaces

import (
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/httpx"
	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/service/order/application"
	"nexus-delivery/internal/service/order/domain"
)

// OrderHandler 封装了订单服务的 HTTP 处理器
type OrderHandler struct {
	service *application.OrderApplicationService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/transitions", h.transition)
	mux.HandleFunc("GET /api/orders/{id}/nearby-shippers", h.nearbyShippers)
	mux.HandleFunc("POST /api/orders/{id}/shipper", h.assignShipper)
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	userID, ok := httpx.ActorID(w, r)
	if !ok {
		return
	}
	var req application.CreateOrderRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	req.CustomerID = userID
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("user.id", userID))

	resp, err := h.service.CreateOrder(ctx, &req)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	logger.Ctx(ctx).Info().Str("order", resp.OrderID).Str("status", string(resp.Status)).Msg("order created via API")
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	userID, ok := httpx.ActorID(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetOrder(ctx, r.PathValue("id"), userID)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	userID, ok := httpx.ActorID(w, r)
	if !ok {
		return
	}
	var req application.TransitionRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	action, err := domain.ParseAction(req.Action)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	orderID := r.PathValue("id")
	status, err := h.service.Transition(ctx, orderID, userID, action)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, application.TransitionResponse{OrderID: orderID, Status: status})
}

func (h *OrderHandler) nearbyShippers(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	if _, ok := httpx.ActorID(w, r); !ok {
		return
	}
	var radius float64
	if raw := r.URL.Query().Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			httpx.WriteError(ctx, w, apperr.Invalid("radius must be a non-negative number"))
			return
		}
		radius = v
	}
	matches, err := h.service.FindNearbyShippers(ctx, r.PathValue("id"), radius)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, matches)
}

func (h *OrderHandler) assignShipper(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Context(r)
	if _, ok := httpx.ActorID(w, r); !ok {
		return
	}
	var req application.AssignShipperRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	orderID := r.PathValue("id")
	assigned, err := h.service.AssignShipper(ctx, orderID, req.ShipperID)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, application.AssignShipperResponse{OrderID: orderID, Assigned: assigned})
}
