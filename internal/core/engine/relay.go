package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/dialoq/dialoq/internal/core"
	"github.com/dialoq/dialoq/internal/metrics"
)

// Denial reasons reported in Outcome and metrics labels.
const (
	ReasonBanned      = "banned"
	ReasonRateLimited = "rate_limited"
	ReasonInternal    = "internal_error"
	ReasonEmpty       = "empty_message"
)

// User-facing notices. Informative denials are normal control flow, not
// errors.
const (
	noticeBanned      = "You're temporarily blocked for sending too many messages. Try again in %s."
	noticeRateLimited = "You've reached your message limit. You're blocked for %s."
	noticeNearLimit   = "Heads up: only %d messages left before you reach your limit."
)

// Outcome summarizes how an inbound message was handled.
type Outcome struct {
	Accepted bool
	Reason   string
	RetryIn  time.Duration
	Count    int
}

// Relay is the outermost per-message handler: ban gate, then rate limiter,
// then enqueue. It is the only component transports talk to.
type Relay struct {
	Bans       *BanGate
	Limiter    *RateLimiter
	Dispatcher *Dispatcher
	Logger     *logging.Logger
}

// Handle runs admission for msg and, when admitted, queues it for the drain
// worker. Each admission step is atomic per user, so concurrent messages
// from the same user cannot lose counter updates. A panic anywhere in the
// path is contained here; the sender gets the generic notice and shared
// state stays intact.
func (r *Relay) Handle(msg core.Message, responder core.Responder, signaler core.ActivitySignaler) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.Logger != nil {
				r.Logger.Error("Message handling panicked",
					zap.String("user_id", msg.From),
					zap.Any("panic", rec))
			}
			metrics.RecordAdmission(false, ReasonInternal)
			r.notify(msg.From, responder, NoticeProcessingFailed)
			out = Outcome{Accepted: false, Reason: ReasonInternal}
		}
	}()

	userID := strings.TrimSpace(msg.From)
	body := strings.TrimSpace(msg.Body)
	if userID == "" || body == "" {
		metrics.RecordAdmission(false, ReasonEmpty)
		return Outcome{Accepted: false, Reason: ReasonEmpty}
	}

	if banned, remaining := r.Bans.IsBanned(userID); banned {
		metrics.RecordAdmission(false, ReasonBanned)
		r.notify(userID, responder, fmt.Sprintf(noticeBanned, formatDuration(remaining)))
		return Outcome{Accepted: false, Reason: ReasonBanned, RetryIn: remaining}
	}

	dec := r.Limiter.Allow(userID)
	if !dec.Allowed {
		// The violation is punished here, once, by the caller of the
		// limiter. The ban outlives the window on purpose.
		banFor := r.Limiter.limits().BanDuration
		r.Bans.Ban(userID, banFor)
		metrics.RecordAdmission(false, ReasonRateLimited)
		metrics.RecordBan()

		if r.Logger != nil {
			r.Logger.Info("User rate limited and banned",
				zap.String("user_id", userID),
				zap.Int("count", dec.Count),
				zap.Duration("ban_duration", banFor))
		}

		r.notify(userID, responder, fmt.Sprintf(noticeRateLimited, formatDuration(banFor)))
		return Outcome{Accepted: false, Reason: ReasonRateLimited, RetryIn: banFor, Count: dec.Count}
	}

	if dec.ShouldWarn {
		left := r.Limiter.limits().MaxMessages - dec.Count
		r.notify(userID, responder, fmt.Sprintf(noticeNearLimit, left))
	}

	r.Dispatcher.Enqueue(userID, &core.Task{
		Body:      body,
		Responder: responder,
		Signaler:  signaler,
	})

	metrics.RecordAdmission(true, "")
	return Outcome{Accepted: true, Count: dec.Count}
}

func (r *Relay) notify(id string, responder core.Responder, body string) {
	if responder == nil {
		return
	}
	if err := responder.Send([]core.Fragment{{Body: body}}); err != nil && r.Logger != nil {
		r.Logger.Warn("Notice delivery failed",
			zap.String("user_id", id),
			zap.Error(err))
	}
}

// formatDuration renders a duration for user-facing notices: whole hours,
// then minutes, then seconds.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := int((d + time.Hour - 1) / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	case d >= time.Minute:
		minutes := int((d + time.Minute - 1) / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	default:
		seconds := int((d + time.Second - 1) / time.Second)
		if seconds <= 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", seconds)
	}
}
