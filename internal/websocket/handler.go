package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bustogether/internal/config"
	"bustogether/internal/hub"
	"bustogether/internal/observability"
	"bustogether/pkg/types"
)

// maxFrameBytes bounds a single inbound frame. A maximum-length message in
// multi-byte script plus its JSON envelope stays well below this.
const maxFrameBytes = 8 << 10

// Submitter is the hub surface the read pump feeds
type Submitter interface {
	Submit(connID string, req *types.Inbound) error
	Disconnected(connID string) error
}

// Handler upgrades rider connections and pumps their requests into the hub
// ARCHITECTURAL DISCOVERY: Clean separation of WebSocket handling from chat logic;
// the handler never interprets a request beyond decoding it
type Handler struct {
	registry *Registry
	hub      Submitter
	config   config.WebSocketConfig
	upgrader websocket.Upgrader
	newID    func() string
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler with dependency injection
func NewHandler(registry *Registry, submitter Submitter, cfg config.WebSocketConfig) *Handler {
	return &Handler{
		registry: registry,
		hub:      submitter,
		config:   cfg,
		upgrader: websocket.Upgrader{
			// FUNCTIONAL DISCOVERY: Riders arrive from a QR landing page that may be
			// served from a different origin than the chat backend
			CheckOrigin:      func(r *http.Request) bool { return true },
			HandshakeTimeout: 10 * time.Second,
		},
		newID:  uuid.NewString,
		logger: observability.WithComponent("websocket"),
	}
}

// HandleWebSocket upgrades the request and serves the connection until it drops.
// No identity is carried across reconnects; every socket gets a fresh connection id.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := NewConnection(h.newID(), ws, h.config.BufferSize, h.config.WriteTimeout)
	if err := h.registry.Register(conn); err != nil {
		h.logger.Error("failed to register connection", "error", err)
		_ = conn.Close()
		return
	}

	h.serve(conn)
}

// serve runs the read pump on the calling goroutine
// ARCHITECTURAL DISCOVERY: One read goroutine per connection plus its writer and a
// ping ticker; everything is released when the read pump returns
func (h *Handler) serve(conn *Connection) {
	logger := h.logger.With("conn_id", conn.ID())
	logger.Debug("connection opened")

	defer func() {
		// FUNCTIONAL DISCOVERY: Leave is queued behind the connection's last request
		// so departure is announced after anything it already sent
		if err := h.hub.Disconnected(conn.ID()); err != nil {
			logger.Debug("disconnect not queued", "error", err)
		}
		h.registry.Unregister(conn)
		_ = conn.Close()
		logger.Debug("connection closed")
	}()

	ws := conn.conn
	ws.SetReadLimit(maxFrameBytes)
	if err := ws.SetReadDeadline(time.Now().Add(h.config.ReadTimeout)); err != nil {
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	go h.heartbeat(conn)

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Info("websocket read error", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var req types.Inbound
		if err := json.Unmarshal(data, &req); err != nil || req.Type == "" {
			_ = conn.Send(types.NewErrorNotice("invalid request"))
			continue
		}

		if err := h.hub.Submit(conn.ID(), &req); err != nil {
			if errors.Is(err, hub.ErrRequestChannelFull) {
				_ = conn.Send(types.NewErrorNotice("please wait"))
				continue
			}
			logger.Warn("request not accepted", "error", err)
			return
		}
	}
}

// heartbeat pings until the connection is torn down
// TECHNICAL DISCOVERY: WriteControl is safe to call concurrently with the writer goroutine
func (h *Handler) heartbeat(conn *Connection) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(h.config.WriteTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-conn.ctx.Done():
			return
		case <-conn.Done():
			return
		}
	}
}
