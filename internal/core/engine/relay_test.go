package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/dialoq/dialoq/internal/core"
)

type relayFixture struct {
	relay *Relay
	now   *time.Time
}

func newTestRelay(t *testing.T, limits LimitConfig) *relayFixture {
	t.Helper()

	s := newTestStore(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clockFn := func() time.Time { return now }

	relay := &Relay{
		Bans:    &BanGate{Store: s, Clock: clockFn},
		Limiter: &RateLimiter{Store: s, Limits: limits, Clock: clockFn},
		Dispatcher: &Dispatcher{
			Store:     s,
			Ask:       echoAsk,
			Heartbeat: NewHeartbeatEmitter(clock.NewMock(), time.Second, nil),
		},
	}
	return &relayFixture{relay: relay, now: &now}
}

func TestRelayAdmitsAndAnswers(t *testing.T) {
	fx := newTestRelay(t, DefaultLimits())
	resp := &recordingResponder{}

	out := fx.relay.Handle(core.Message{From: "alice", Body: "hello"}, resp, nil)
	fx.relay.Dispatcher.Wait()

	require.True(t, out.Accepted)
	require.Equal(t, 1, out.Count)
	require.Equal(t, []string{"reply to hello"}, resp.sent())
}

func TestRelayRejectsEmptyMessages(t *testing.T) {
	fx := newTestRelay(t, DefaultLimits())
	resp := &recordingResponder{}

	for _, msg := range []core.Message{
		{From: "", Body: "hello"},
		{From: "alice", Body: ""},
		{From: "alice", Body: "   \n\t "},
	} {
		out := fx.relay.Handle(msg, resp, nil)
		require.False(t, out.Accepted)
		require.Equal(t, ReasonEmpty, out.Reason)
	}
	require.Empty(t, resp.sent())
}

func TestRelayBansOnBudgetViolation(t *testing.T) {
	fx := newTestRelay(t, DefaultLimits())

	for i := 0; i < DefaultMaxMessages; i++ {
		out := fx.relay.Handle(core.Message{From: "alice", Body: fmt.Sprintf("msg %d", i)}, nil, nil)
		require.True(t, out.Accepted)
	}
	fx.relay.Dispatcher.Wait()

	resp := &recordingResponder{}
	out := fx.relay.Handle(core.Message{From: "alice", Body: "one too many"}, resp, nil)
	require.False(t, out.Accepted)
	require.Equal(t, ReasonRateLimited, out.Reason)
	require.Equal(t, DefaultBanDuration, out.RetryIn)
	require.Equal(t, []string{"You've reached your message limit. You're blocked for 1 hour."}, resp.sent())

	// Subsequent messages hit the ban gate, not the limiter.
	resp2 := &recordingResponder{}
	out = fx.relay.Handle(core.Message{From: "alice", Body: "still here"}, resp2, nil)
	require.False(t, out.Accepted)
	require.Equal(t, ReasonBanned, out.Reason)
	require.Equal(t, []string{"You're temporarily blocked for sending too many messages. Try again in 1 hour."}, resp2.sent())
}

func TestRelayAdmitsAgainAfterBanAndWindowElapse(t *testing.T) {
	limits := LimitConfig{
		MaxMessages:   3,
		Window:        time.Hour,
		BanDuration:   2 * time.Hour,
		WarnThreshold: 2,
	}
	fx := newTestRelay(t, limits)

	for i := 0; i < limits.MaxMessages; i++ {
		require.True(t, fx.relay.Handle(core.Message{From: "alice", Body: "hi"}, nil, nil).Accepted)
	}
	fx.relay.Dispatcher.Wait()

	out := fx.relay.Handle(core.Message{From: "alice", Body: "over"}, nil, nil)
	require.Equal(t, ReasonRateLimited, out.Reason)

	// The ban outlives the window, so once it expires the window has
	// already reset and the first message is admitted.
	*fx.now = fx.now.Add(limits.BanDuration + time.Second)

	out = fx.relay.Handle(core.Message{From: "alice", Body: "back"}, nil, nil)
	fx.relay.Dispatcher.Wait()
	require.True(t, out.Accepted)
	require.Equal(t, 1, out.Count)
}

func TestRelayBanOutlivesSaturatedWindow(t *testing.T) {
	limits := LimitConfig{
		MaxMessages:   2,
		Window:        time.Minute,
		BanDuration:   time.Hour,
		WarnThreshold: 2,
	}
	fx := newTestRelay(t, limits)

	for i := 0; i < limits.MaxMessages; i++ {
		require.True(t, fx.relay.Handle(core.Message{From: "alice", Body: "hi"}, nil, nil).Accepted)
	}
	fx.relay.Dispatcher.Wait()
	require.Equal(t, ReasonRateLimited, fx.relay.Handle(core.Message{From: "alice", Body: "x"}, nil, nil).Reason)

	// Window reset alone does not lift the ban.
	*fx.now = fx.now.Add(5 * time.Minute)
	out := fx.relay.Handle(core.Message{From: "alice", Body: "y"}, nil, nil)
	require.False(t, out.Accepted)
	require.Equal(t, ReasonBanned, out.Reason)
}

func TestRelayWarnsNearLimitExactlyOnce(t *testing.T) {
	fx := newTestRelay(t, DefaultLimits())
	resp := &recordingResponder{}

	for i := 1; i <= DefaultWarnThreshold+2; i++ {
		out := fx.relay.Handle(core.Message{From: "alice", Body: fmt.Sprintf("msg %d", i)}, resp, nil)
		require.True(t, out.Accepted)
	}
	fx.relay.Dispatcher.Wait()

	left := DefaultMaxMessages - DefaultWarnThreshold
	warning := fmt.Sprintf("Heads up: only %d messages left before you reach your limit.", left)
	warned := 0
	for _, body := range resp.sent() {
		if body == warning {
			warned++
		}
	}
	require.Equal(t, 1, warned)
}

func TestRelayIsolatesUsers(t *testing.T) {
	limits := LimitConfig{
		MaxMessages:   2,
		Window:        time.Hour,
		BanDuration:   time.Hour,
		WarnThreshold: 2,
	}
	fx := newTestRelay(t, limits)

	for i := 0; i < limits.MaxMessages; i++ {
		require.True(t, fx.relay.Handle(core.Message{From: "alice", Body: "hi"}, nil, nil).Accepted)
	}
	fx.relay.Dispatcher.Wait()
	require.False(t, fx.relay.Handle(core.Message{From: "alice", Body: "x"}, nil, nil).Accepted)

	out := fx.relay.Handle(core.Message{From: "bob", Body: "hello"}, nil, nil)
	fx.relay.Dispatcher.Wait()
	require.True(t, out.Accepted)
}

func TestRelayRecoversFromPanicWithGenericNotice(t *testing.T) {
	// A relay with no ban gate panics on the first dereference; the
	// handler must contain it and fall back to the generic notice.
	relay := &Relay{}
	resp := &recordingResponder{}

	out := relay.Handle(core.Message{From: "alice", Body: "hello"}, resp, nil)

	require.False(t, out.Accepted)
	require.Equal(t, ReasonInternal, out.Reason)
	require.Equal(t, []string{NoticeProcessingFailed}, resp.sent())
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "30 seconds"},
		{time.Second, "1 second"},
		{500 * time.Millisecond, "1 second"},
		{90 * time.Second, "2 minutes"},
		{time.Minute, "1 minute"},
		{time.Hour, "1 hour"},
		{90 * time.Minute, "2 hours"},
		{24 * time.Hour, "24 hours"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, formatDuration(tc.in), "formatDuration(%s)", tc.in)
	}
}
