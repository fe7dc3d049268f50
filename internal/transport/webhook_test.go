package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dialoq/dialoq/internal/core"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []WebhookEvent
	status int
}

func (r *eventRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var event WebhookEvent
	if err := json.NewDecoder(req.Body).Decode(&event); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()

	status := r.status
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (r *eventRecorder) received() []WebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]WebhookEvent, len(r.events))
	copy(out, r.events)
	return out
}

func TestWebhookSendPostsMessageEvent(t *testing.T) {
	rec := &eventRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	session := NewWebhookSession("alice", srv.URL, srv.Client())
	err := session.Send([]core.Fragment{{Body: "first"}, {Body: "second"}})
	require.NoError(t, err)

	events := rec.received()
	require.Len(t, events, 1)
	require.Equal(t, EventMessage, events[0].Type)
	require.Equal(t, "alice", events[0].UserID)
	require.Equal(t, []string{"first", "second"}, events[0].Fragments)
	require.NotEmpty(t, events[0].Timestamp)
}

func TestWebhookSignalActivityPostsTypingEvent(t *testing.T) {
	rec := &eventRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	session := NewWebhookSession("alice", srv.URL, srv.Client())
	require.NoError(t, session.SignalActivity())

	events := rec.received()
	require.Len(t, events, 1)
	require.Equal(t, EventTyping, events[0].Type)
	require.Empty(t, events[0].Fragments)
}

func TestWebhookReportsNonSuccessStatus(t *testing.T) {
	rec := &eventRecorder{status: http.StatusBadGateway}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	session := NewWebhookSession("alice", srv.URL, srv.Client())
	err := session.Send([]core.Fragment{{Body: "hello"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestWebhookReportsUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(&eventRecorder{})
	url := srv.URL
	srv.Close()

	session := NewWebhookSession("alice", url, nil)
	err := session.Send([]core.Fragment{{Body: "hello"}})
	require.Error(t, err)
}
