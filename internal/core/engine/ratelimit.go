// Package engine implements the relay core: admission (ban gate and rate
// limiter), the per-user task queue with its drain worker, and the activity
// heartbeat. All user state lives in the bounded store; every mutation goes
// through store.Update so concurrent admission checks for the same user never
// lose updates.
package engine

import (
	"fmt"
	"time"

	"github.com/dialoq/dialoq/internal/core"
	"github.com/dialoq/dialoq/internal/core/store"
)

// Default admission limits. All of them are configuration; deployments have
// run with 20 or 30 messages and 1h or 24h bans.
const (
	DefaultMaxMessages   = 20
	DefaultWindow        = 24 * time.Hour
	DefaultBanDuration   = time.Hour
	DefaultWarnThreshold = 15
)

// LimitConfig carries the effective admission limits.
type LimitConfig struct {
	// MaxMessages is the admission budget per window.
	MaxMessages int
	// Window is the fixed rate-limit window.
	Window time.Duration
	// BanDuration is applied on a rate-limit violation.
	BanDuration time.Duration
	// WarnThreshold is the count at which the near-limit warning fires.
	WarnThreshold int
}

// DefaultLimits returns the reference limit set.
func DefaultLimits() LimitConfig {
	return LimitConfig{
		MaxMessages:   DefaultMaxMessages,
		Window:        DefaultWindow,
		BanDuration:   DefaultBanDuration,
		WarnThreshold: DefaultWarnThreshold,
	}
}

// Validate checks the constraints the type system cannot express. Both the
// config loader and server startup run limits through here so a bad limit
// set never reaches a running relay.
func (c LimitConfig) Validate() error {
	if c.MaxMessages <= 0 {
		return fmt.Errorf("limits.max_messages must be positive, got %d", c.MaxMessages)
	}
	if c.Window <= 0 {
		return fmt.Errorf("limits.window must be positive, got %s", c.Window)
	}
	if c.BanDuration <= 0 {
		return fmt.Errorf("limits.ban_duration must be positive, got %s", c.BanDuration)
	}
	if c.WarnThreshold <= 0 || c.WarnThreshold > c.MaxMessages {
		return fmt.Errorf("limits.warn_threshold must be between 1 and limits.max_messages, got %d", c.WarnThreshold)
	}
	return nil
}

// Decision is the outcome of a rate-limit admission check.
type Decision struct {
	Allowed bool
	// Count is the message count after the check. It saturates at the
	// limit: denied messages do not increment it.
	Count int
	// ResetIn is the time until the current window resets, floored at 0.
	ResetIn time.Duration
	// ShouldWarn is true exactly once per window, on the message that
	// brings Count to the warn threshold.
	ShouldWarn bool
}

// RateLimiter decides per-message admission using a fixed window and a
// message-count budget.
//
// This is a fixed-window counter, not a sliding one: a user can burst up to
// twice the budget across a window boundary. That approximation is inherited
// deliberately; do not "fix" it silently.
type RateLimiter struct {
	Store  *store.Store
	Limits LimitConfig
	Clock  func() time.Time
}

// Allow runs the admission check for id and returns the decision. The whole
// read-modify-write happens atomically under the store lock.
func (r *RateLimiter) Allow(id string) Decision {
	now := r.now()
	limits := r.limits()

	var dec Decision
	r.Store.Update(id, func(st *core.UserState) {
		if st.WindowStart.IsZero() || now.Sub(st.WindowStart) >= limits.Window {
			st.MessageCount = 0
			st.WindowStart = now
			st.WarnedNearLimit = false
		}

		dec.ResetIn = limits.Window - now.Sub(st.WindowStart)
		if dec.ResetIn < 0 {
			dec.ResetIn = 0
		}

		if st.MessageCount >= limits.MaxMessages {
			dec.Allowed = false
			dec.Count = st.MessageCount
			return
		}

		st.MessageCount++
		dec.Allowed = true
		dec.Count = st.MessageCount

		if st.MessageCount == limits.WarnThreshold && !st.WarnedNearLimit {
			st.WarnedNearLimit = true
			dec.ShouldWarn = true
		}
	})

	return dec
}

func (r *RateLimiter) limits() LimitConfig {
	limits := r.Limits
	if limits.MaxMessages <= 0 {
		limits.MaxMessages = DefaultMaxMessages
	}
	if limits.Window <= 0 {
		limits.Window = DefaultWindow
	}
	if limits.BanDuration <= 0 {
		limits.BanDuration = DefaultBanDuration
	}
	if limits.WarnThreshold <= 0 {
		limits.WarnThreshold = DefaultWarnThreshold
	}
	return limits
}

func (r *RateLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
