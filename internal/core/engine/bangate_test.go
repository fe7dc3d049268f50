package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBanGateUnknownUserNotBanned(t *testing.T) {
	gate := &BanGate{Store: newTestStore(t)}

	banned, remaining := gate.IsBanned("stranger")
	require.False(t, banned)
	require.Zero(t, remaining)
}

func TestBanGateBanAndRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gate := &BanGate{
		Store: newTestStore(t),
		Clock: func() time.Time { return now },
	}

	gate.Ban("alice", time.Hour)

	banned, remaining := gate.IsBanned("alice")
	require.True(t, banned)
	require.Equal(t, time.Hour, remaining)

	now = now.Add(45 * time.Minute)
	banned, remaining = gate.IsBanned("alice")
	require.True(t, banned)
	require.Equal(t, 15*time.Minute, remaining)
}

func TestBanGateLazyExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t)
	gate := &BanGate{
		Store: s,
		Clock: func() time.Time { return now },
	}

	gate.Ban("alice", time.Hour)

	now = now.Add(time.Hour)

	banned, remaining := gate.IsBanned("alice")
	require.False(t, banned)
	require.Zero(t, remaining)

	// Expiry is observed, not scheduled: the stale ban is cleared on check.
	state, ok := s.Get("alice")
	require.True(t, ok)
	require.Nil(t, state.BanUntil)
}

func TestBanGateRebanExtends(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gate := &BanGate{
		Store: newTestStore(t),
		Clock: func() time.Time { return now },
	}

	gate.Ban("alice", time.Hour)
	now = now.Add(30 * time.Minute)
	gate.Ban("alice", 24*time.Hour)

	banned, remaining := gate.IsBanned("alice")
	require.True(t, banned)
	require.Equal(t, 24*time.Hour, remaining)
}
