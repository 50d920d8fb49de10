package api

import (
	"strconv"
	"time"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/pusherd/pusherd/internal/hub"
	"github.com/pusherd/pusherd/internal/socket"
)

// WSHandler serves the WebSocket upgrade endpoint that puts a connection under the Hub's control.
type WSHandler struct {
	hub           *hub.Hub
	pingInterval  time.Duration
	pongTimeout   time.Duration
	maxFrameBytes int64
	outboxSize    int
	log           zerolog.Logger
}

// NewWSHandler creates a new WebSocket upgrade handler.
func NewWSHandler(h *hub.Hub, pingInterval, pongTimeout time.Duration, maxFrameBytes int64, outboxSize int, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:           h,
		pingInterval:  pingInterval,
		pongTimeout:   pongTimeout,
		maxFrameBytes: maxFrameBytes,
		outboxSize:    outboxSize,
		log:           logger,
	}
}

// Upgrade handles GET /app/:app_id. It upgrades the HTTP connection to a WebSocket and runs a Session over it for
// the lifetime of the connection.
func (h *WSHandler) Upgrade(c fiber.Ctx) error {
	appID, err := strconv.ParseInt(c.Params("app_id"), 10, 64)
	if err != nil {
		return fiber.ErrNotFound
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	ctx := c.Context()
	return websocket.New(func(conn *websocket.Conn) {
		session := socket.New(conn.Conn, h.hub, appID, h.pingInterval, h.pongTimeout, h.maxFrameBytes, h.outboxSize, h.log)
		session.Serve(ctx)
	})(c)
}
