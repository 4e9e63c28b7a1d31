package handler

import (
	"net/http"
	"strings"
	"time"

	"stakehub/internal/domain"
	"stakehub/internal/journal"
	"stakehub/internal/middleware"
	"stakehub/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StreamHandler pushes committed settlement events to websocket clients.
type StreamHandler struct {
	hub      *journal.Hub
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewStreamHandler accepts any origin when allowed is empty.
func NewStreamHandler(hub *journal.Hub, allowed []string, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowed {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
		logger: log,
	}
}

// Stream serves GET /api/v1/stream?subject=<pool or round id>. Without a
// subject every event is sent.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	subject := domain.PoolID(r.URL.Query().Get("subject"))
	sub := h.hub.Subscribe(subject)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.logger.Warn("Websocket upgrade failed", map[string]interface{}{
			"error":      err.Error(),
			"request_id": middleware.RequestIDFromContext(r.Context()),
		})
		return
	}

	h.logger.Info("Stream client connected", map[string]interface{}{
		"subject":     string(subject),
		"subscribers": h.hub.Subscribers(),
	})

	go h.readPump(conn, sub)
	h.writePump(conn, sub)
}

// readPump only watches for the client going away; inbound frames are ignored.
func (h *StreamHandler) readPump(conn *websocket.Conn, sub *journal.Subscription) {
	defer sub.Close()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Stream closed unexpectedly", map[string]interface{}{"error": err.Error()})
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, sub *journal.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
