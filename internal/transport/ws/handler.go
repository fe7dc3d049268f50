// Package ws exposes the websocket transport: one connection per user, JSON
// frames in both directions, replies and typing signals pushed from the
// engine through the session.
package ws

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dialoq/dialoq/internal/core"
	"github.com/dialoq/dialoq/internal/core/engine"
	"github.com/dialoq/dialoq/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The relay applies per-user admission; origin policy belongs to the
	// deployment's proxy layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests to websocket sessions and feeds inbound
// frames to the relay.
type Handler struct {
	Relay  *engine.Relay
	Logger *logging.Logger

	connections int64
}

// NewHandler creates a websocket handler backed by relay.
func NewHandler(relay *engine.Relay, logger *logging.Logger) *Handler {
	return &Handler{Relay: relay, Logger: logger}
}

// ServeHTTP handles GET /ws?user_id=<id>.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		if h.Logger != nil {
			h.Logger.Warn("Websocket upgrade failed",
				zap.String("user_id", userID),
				zap.Error(err))
		}
		return
	}

	session := newSession(userID, conn)
	metrics.SetActiveConnections(atomic.AddInt64(&h.connections, 1))

	if h.Logger != nil {
		h.Logger.Info("Websocket session opened",
			zap.String("user_id", userID),
			zap.String("remote_addr", r.RemoteAddr))
	}

	go session.writeLoop()
	h.readLoop(session)

	session.close()
	metrics.SetActiveConnections(atomic.AddInt64(&h.connections, -1))

	if h.Logger != nil {
		h.Logger.Info("Websocket session closed",
			zap.String("user_id", userID))
	}
}

// Connections returns the number of live sessions.
func (h *Handler) Connections() int64 {
	return atomic.LoadInt64(&h.connections)
}

// readLoop consumes inbound frames until the connection drops. Each message
// frame goes through the full admission path; the relay pushes replies and
// denial notices back through the same session.
func (h *Handler) readLoop(s *Session) {
	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongTimeout)) // nolint:errcheck // deadline errors surface on read
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		var frame Frame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && h.Logger != nil {
				h.Logger.Warn("Websocket read failed",
					zap.String("user_id", s.userID),
					zap.Error(err))
			}
			return
		}

		if frame.Type != FrameMessage {
			continue
		}

		h.Relay.Handle(core.Message{From: s.userID, Body: frame.Body}, s, s)
	}
}
