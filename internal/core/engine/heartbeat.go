package engine

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/dialoq/dialoq/internal/core"
)

// DefaultHeartbeatPeriod is the reference activity-signal interval.
const DefaultHeartbeatPeriod = time.Second

// HeartbeatEmitter signals ongoing activity to the transport while a user's
// queue is being drained. One session per drain session: Start is called once
// when draining begins and Stop once when it ends; the drain worker pairs
// them with a defer so a failing drain path cannot leak the ticker.
type HeartbeatEmitter struct {
	clock  clock.Clock
	period time.Duration
	logger *logging.Logger

	mu       sync.Mutex
	sessions map[string]*heartbeatSession
}

// heartbeatSession is one live drain session's signal target. The signaler
// is read under the emitter's mutex on every tick so Retarget takes effect
// mid-session.
type heartbeatSession struct {
	done chan struct{}
	sig  core.ActivitySignaler
}

// NewHeartbeatEmitter creates an emitter ticking at the given period. A nil
// clk uses the wall clock; a non-positive period falls back to the default.
func NewHeartbeatEmitter(clk clock.Clock, period time.Duration, logger *logging.Logger) *HeartbeatEmitter {
	if clk == nil {
		clk = clock.New()
	}
	if period <= 0 {
		period = DefaultHeartbeatPeriod
	}
	return &HeartbeatEmitter{
		clock:    clk,
		period:   period,
		logger:   logger,
		sessions: make(map[string]*heartbeatSession),
	}
}

// Start begins a heartbeat session for id. The first signal is sent
// synchronously; subsequent ones fire on the period until Stop. Starting an
// id with a live session is a no-op, preserving the one-session-per-drain
// invariant.
func (h *HeartbeatEmitter) Start(id string, sig core.ActivitySignaler) {
	if sig == nil {
		return
	}

	h.mu.Lock()
	if _, exists := h.sessions[id]; exists {
		h.mu.Unlock()
		return
	}
	sess := &heartbeatSession{done: make(chan struct{}), sig: sig}
	h.sessions[id] = sess
	h.mu.Unlock()

	h.signal(id, sig)

	go func() {
		ticker := h.clock.Ticker(h.period)
		defer ticker.Stop()

		for {
			select {
			case <-sess.done:
				return
			case <-ticker.C:
				h.mu.Lock()
				cur := sess.sig
				h.mu.Unlock()
				h.signal(id, cur)
			}
		}
	}()
}

// Retarget points a live session's signals at a different transport session.
// A task queued before a reconnect would otherwise keep signaling the
// connection that enqueued it. No-op when sig is nil or no session is live.
func (h *HeartbeatEmitter) Retarget(id string, sig core.ActivitySignaler) {
	if sig == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if sess, ok := h.sessions[id]; ok {
		sess.sig = sig
	}
}

// Stop ends the heartbeat session for id. Safe to call when no session is
// active, and idempotent.
func (h *HeartbeatEmitter) Stop(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sess, ok := h.sessions[id]; ok {
		close(sess.done)
		delete(h.sessions, id)
	}
}

// Active returns the number of live heartbeat sessions.
func (h *HeartbeatEmitter) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *HeartbeatEmitter) signal(id string, sig core.ActivitySignaler) {
	if err := sig.SignalActivity(); err != nil && h.logger != nil {
		h.logger.Warn("Activity signal failed",
			zap.String("user_id", id),
			zap.Error(err))
	}
}
