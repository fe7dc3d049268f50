package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dialoq/dialoq/internal/core"
)

// Frame types on the wire. Inbound frames carry user messages; outbound
// frames carry reply fragments and typing signals.
const (
	FrameMessage  = "message"
	FrameFragment = "fragment"
	FrameTyping   = "typing"
)

// Frame is the JSON message exchanged over the websocket.
type Frame struct {
	Type string `json:"type"`
	Body string `json:"body,omitempty"`
}

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingPeriod   = 45 * time.Second
	maxFrameSize = 64 * 1024

	// outboundBuffer bounds queued outbound frames; a slow reader loses
	// typing signals before it loses fragments.
	outboundBuffer = 64
)

// ErrSessionClosed is returned when delivery is attempted after the
// connection has gone away. The drain worker treats it as a normal delivery
// failure.
var ErrSessionClosed = errors.New("websocket session closed")

// Session is one user's live websocket connection. All writes go through a
// single writer goroutine; Send and SignalActivity only enqueue.
type Session struct {
	userID   string
	conn     *websocket.Conn
	outbound chan Frame

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(userID string, conn *websocket.Conn) *Session {
	return &Session{
		userID:   userID,
		conn:     conn,
		outbound: make(chan Frame, outboundBuffer),
		done:     make(chan struct{}),
	}
}

// UserID implements transport.Session.
func (s *Session) UserID() string {
	return s.userID
}

// Send delivers fragments as individual frames in order. Blocks while the
// outbound buffer is full so fragment order and completeness are preserved;
// returns ErrSessionClosed once the connection is gone.
func (s *Session) Send(fragments []core.Fragment) error {
	for _, f := range fragments {
		if s.closed() {
			return ErrSessionClosed
		}
		select {
		case s.outbound <- Frame{Type: FrameFragment, Body: f.Body}:
		case <-s.done:
			return ErrSessionClosed
		}
	}
	return nil
}

// SignalActivity enqueues a typing frame. Typing is best effort: when the
// outbound buffer is full the signal is dropped rather than stalling the
// heartbeat.
func (s *Session) SignalActivity() error {
	if s.closed() {
		return ErrSessionClosed
	}
	select {
	case s.outbound <- Frame{Type: FrameTyping}:
	default:
	}
	return nil
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// close shuts the session down. Safe to call more than once.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close() // nolint:errcheck // best-effort cleanup
	})
}

// writeLoop is the single writer. It serializes outbound frames and keeps
// the connection alive with pings.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.close()

	for {
		select {
		case frame := <-s.outbound:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) // nolint:errcheck // deadline errors surface on write
			if err := s.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) // nolint:errcheck // deadline errors surface on write
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
