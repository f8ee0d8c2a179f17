package websocket

import (
	"context"
	"net/http"
	"time"

	"talk-chat/config"
	"talk-chat/pkg/jwt"
	"talk-chat/pkg/logger"
	"talk-chat/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// PresenceTracker is updated as connections come and go. Nil disables it.
type PresenceTracker interface {
	Connect(ctx context.Context, userID uint) error
	Refresh(ctx context.Context, userID uint) error
	Disconnect(ctx context.Context, userID uint) error
}

type Handler struct {
	manager  *Manager
	presence PresenceTracker
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewHandler(manager *Manager, presence PresenceTracker, cfg config.WebSocketConfig) *Handler {
	return &Handler{
		manager:  manager,
		presence: presence,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origins are enforced by the ticket, not by the browser
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades a request already authenticated by jwt.RequireTicket. The
// socket is push-only: inbound frames are read just to keep deadlines alive.
func (h *Handler) Serve(c *gin.Context) {
	userID, ok := jwt.GetUserID(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}

	client := NewClient(userID, conn)
	if h.manager.AddClient(client) {
		h.track(userID, "connect", h.presenceConnect)
	}
	logger.Debug("websocket connected", zap.Uint("user_id", userID))

	go h.writePump(client)
	h.readPump(client)
}

func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readPump(client *Client) {
	defer func() {
		if h.manager.RemoveClient(client) {
			h.track(client.UserID, "disconnect", h.presenceDisconnect)
		}
		_ = client.Conn.Close()
		logger.Debug("websocket closed", zap.Uint("user_id", client.UserID))
	}()

	client.Conn.SetReadLimit(4096)
	_ = client.Conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	client.Conn.SetPongHandler(func(string) error {
		h.track(client.UserID, "refresh", h.presenceRefresh)
		return client.Conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read error", zap.Uint("user_id", client.UserID), zap.Error(err))
			}
			return
		}
		_ = client.Conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	}
}

func (h *Handler) presenceConnect(ctx context.Context, id uint) error {
	return h.presence.Connect(ctx, id)
}

func (h *Handler) presenceRefresh(ctx context.Context, id uint) error {
	return h.presence.Refresh(ctx, id)
}

func (h *Handler) presenceDisconnect(ctx context.Context, id uint) error {
	return h.presence.Disconnect(ctx, id)
}

func (h *Handler) track(userID uint, op string, fn func(context.Context, uint) error) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fn(ctx, userID); err != nil {
		logger.Warn("presence update failed", zap.String("op", op), zap.Uint("user_id", userID), zap.Error(err))
	}
}
