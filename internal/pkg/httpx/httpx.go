// Package httpx 是各个 HTTP 适配器共用的请求解析与错误映射。
package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/logger"
)

// HeaderUserID 携带经过网关认证后的用户 ID。
const HeaderUserID = "X-User-ID"

// Context 还原上游的追踪上下文。
func Context(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

// ActorID 读取调用者身份，缺失时写回 401 并返回 false。
func ActorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(HeaderUserID)
	if id == "" {
		WriteError(r.Context(), w, apperr.Unauthorized("missing %s header", HeaderUserID))
		return "", false
	}
	return id, true
}

// DecodeJSON 解析请求体，失败时写回 400 并返回 false。
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(r.Context(), w, apperr.Invalid("invalid request body: %v", err))
		return false
	}
	return true
}

// WriteJSON 写回 JSON 响应。
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor 把错误分类映射为 HTTP 状态码。
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindIllegalTransition:
		return http.StatusConflict
	case apperr.KindInsufficientBalance:
		return http.StatusPaymentRequired
	case apperr.KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind"`
}

// WriteError 按错误分类写回响应；内部错误不暴露细节。
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	status := StatusFor(err)
	kind := apperr.KindOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Ctx(ctx).Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	WriteJSON(w, status, errorBody{Error: msg, Kind: kind})
}
