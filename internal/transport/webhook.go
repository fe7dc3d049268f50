package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dialoq/dialoq/internal/core"
)

// Webhook event types.
const (
	EventMessage = "message"
	EventTyping  = "typing"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookEvent is the JSON body posted to the callback URL.
type WebhookEvent struct {
	Type      string   `json:"type"`
	UserID    string   `json:"user_id"`
	Fragments []string `json:"fragments,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// WebhookSession delivers replies for one user by POSTing events to a
// callback URL. It backs the HTTP ingress, where the caller is gone by the
// time the drain worker produces an answer.
type WebhookSession struct {
	userID      string
	callbackURL string
	client      *http.Client
	clock       func() time.Time
}

// NewWebhookSession creates a session posting events for userID to
// callbackURL. A nil client uses a default with a 10 second timeout.
func NewWebhookSession(userID, callbackURL string, client *http.Client) *WebhookSession {
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	return &WebhookSession{
		userID:      userID,
		callbackURL: callbackURL,
		client:      client,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// UserID implements Session.
func (s *WebhookSession) UserID() string {
	return s.userID
}

// Send posts the fragments as a single message event. Fragment order inside
// the event mirrors delivery order.
func (s *WebhookSession) Send(fragments []core.Fragment) error {
	bodies := make([]string, 0, len(fragments))
	for _, f := range fragments {
		bodies = append(bodies, f.Body)
	}
	return s.post(WebhookEvent{
		Type:      EventMessage,
		UserID:    s.userID,
		Fragments: bodies,
		Timestamp: s.clock().Format(time.RFC3339),
	})
}

// SignalActivity posts a typing event.
func (s *WebhookSession) SignalActivity() error {
	return s.post(WebhookEvent{
		Type:      EventTyping,
		UserID:    s.userID,
		Timestamp: s.clock().Format(time.RFC3339),
	})
}

func (s *WebhookSession) post(event WebhookEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode webhook event: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.callbackURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook event: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
