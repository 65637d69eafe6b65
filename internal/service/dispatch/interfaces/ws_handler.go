package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/pkg/httpx"
	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/service/dispatch/application"
	"nexus-delivery/internal/service/dispatch/domain"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// LocationUpdate 是骑手端推送的一条位置消息
type LocationUpdate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CourierSocketHandler 接收骑手端的位置推送
type CourierSocketHandler struct {
	service  *application.DispatchService
	upgrader websocket.Upgrader
}

func NewCourierSocketHandler(service *application.DispatchService) *CourierSocketHandler {
	return &CourierSocketHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool { // 骑手 App 不是浏览器，不校验来源
				return true
			},
		},
	}
}

func (h *CourierSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/couriers", h.serveWs)
}

func (h *CourierSocketHandler) serveWs(w http.ResponseWriter, r *http.Request) {
	shipperID := r.URL.Query().Get("shipper_id")
	if shipperID == "" {
		httpx.WriteError(r.Context(), w, apperr.Invalid("shipper_id is required"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Str("shipper_id", shipperID).Msg("websocket upgrade failed")
		return
	}
	logger.L().Info().Str("shipper_id", shipperID).Msg("🛵 courier connected")

	// 连接的生命周期独立于升级请求
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go h.keepAlive(ctx, conn)
	h.readPump(ctx, conn, shipperID)

	if err := h.service.GoOffline(context.WithoutCancel(ctx), shipperID); err != nil {
		logger.L().Error().Err(err).Str("shipper_id", shipperID).Msg("failed to mark courier offline")
	}
	logger.L().Info().Str("shipper_id", shipperID).Msg("courier disconnected")
}

func (h *CourierSocketHandler) readPump(ctx context.Context, conn *websocket.Conn, shipperID string) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var update LocationUpdate
		if err := conn.ReadJSON(&update); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.L().Warn().Err(err).Str("shipper_id", shipperID).Msg("courier socket closed unexpectedly")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		p := domain.Point{Lat: update.Latitude, Lng: update.Longitude}
		if err := h.service.ReportLocation(ctx, shipperID, p); err != nil {
			logger.L().Warn().Err(err).Str("shipper_id", shipperID).Msg("location update rejected")
		}
	}
}

func (h *CourierSocketHandler) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
