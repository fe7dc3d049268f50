package engine

import (
	"time"

	"github.com/dialoq/dialoq/internal/core"
	"github.com/dialoq/dialoq/internal/core/store"
)

// BanGate tracks temporary suspensions. Bans expire lazily: a stale ban is
// cleared the next time the user is checked, never by a background sweep.
type BanGate struct {
	Store *store.Store
	Clock func() time.Time
}

// IsBanned reports whether id is currently banned and, if so, for how much
// longer. A ban that has expired is cleared as a side effect.
func (g *BanGate) IsBanned(id string) (bool, time.Duration) {
	state, ok := g.Store.Get(id)
	if !ok || state.BanUntil == nil {
		return false, 0
	}

	now := g.now()

	var remaining time.Duration
	g.Store.Update(id, func(st *core.UserState) {
		if st.BanUntil == nil {
			return
		}
		if st.BanUntil.After(now) {
			remaining = st.BanUntil.Sub(now)
			return
		}
		st.BanUntil = nil
	})

	return remaining > 0, remaining
}

// Ban suspends id for the given duration starting now. The caller invokes
// this once per rate-limit violation; the admission decision itself stays in
// the RateLimiter.
func (g *BanGate) Ban(id string, duration time.Duration) {
	until := g.now().Add(duration)
	g.Store.Update(id, func(st *core.UserState) {
		st.BanUntil = &until
	})
}

func (g *BanGate) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now().UTC()
}
