package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	ws "github.com/platformbuilds/hindsight/internal/api/websocket"
	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
)

// EventsTailHandler upgrades GET /api/v1/events/tail to a WebSocket and
// attaches the subscriber to the event hub.
// Query params: service (exact match), min_level (lowest level streamed).
type EventsTailHandler struct {
	hub    *ws.Hub
	cfg    config.WebSocketConfig
	logger logging.Logger
}

func NewEventsTailHandler(hub *ws.Hub, cfg config.WebSocketConfig, log logging.Logger) *EventsTailHandler {
	return &EventsTailHandler{hub: hub, cfg: cfg, logger: log}
}

// Tail handles GET /api/v1/events/tail.
func (h *EventsTailHandler) Tail(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.JSON(http.StatusUpgradeRequired, models.ErrorResponse(
			"WebSocket upgrade required; connect with a WebSocket client, e.g. ws://host/api/v1/events/tail?min_level=ERROR"))
		return
	}

	if h.cfg.MaxConnections > 0 && h.hub.ClientCount() >= h.cfg.MaxConnections {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("tail subscriber limit reached"))
		return
	}

	readBuf := h.cfg.ReadBufferSize
	if readBuf <= 0 {
		readBuf = 8 << 10
	}
	writeBuf := h.cfg.WriteBufferSize
	if writeBuf <= 0 {
		writeBuf = 64 << 10
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  readBuf,
		WriteBufferSize: writeBuf,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}

	client := h.hub.NewClient(conn, c.GetString("user_id"), c.Query("service"), c.Query("min_level"))
	h.hub.Register(client)
}
