package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/dialoq/dialoq/internal/errors"

	"github.com/dialoq/dialoq/internal/core"
	"github.com/dialoq/dialoq/internal/core/engine"
	"github.com/dialoq/dialoq/internal/transport"
)

// maxMessageBodyBytes bounds the inbound request body.
const maxMessageBodyBytes = 64 * 1024

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	UserID      string `json:"user_id"`
	Body        string `json:"body"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// MessageResponse is returned when a message is accepted. Replies are
// delivered asynchronously to the callback URL, so acceptance only means
// the message passed admission and was queued.
type MessageResponse struct {
	Status string `json:"status"`
	UserID string `json:"user_id"`
	Count  int    `json:"count,omitempty"`
}

// MessagesHandler is the HTTP ingress: it runs each message through the
// relay and reports the admission outcome.
type MessagesHandler struct {
	Relay *engine.Relay

	// DefaultCallbackURL receives reply events when the request does not
	// name its own callback.
	DefaultCallbackURL string
}

// NewMessagesHandler creates the ingress handler backed by relay.
func NewMessagesHandler(relay *engine.Relay, defaultCallbackURL string) *MessagesHandler {
	return &MessagesHandler{Relay: relay, DefaultCallbackURL: defaultCallbackURL}
}

// ServeHTTP handles POST /v1/messages.
func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "Request body must be valid JSON"))
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		respondWithError(w, r, apperrors.NewValidationError("user_id is required"))
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		respondWithError(w, r, apperrors.NewValidationError("body is required"))
		return
	}

	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = h.DefaultCallbackURL
	}

	var session transport.Session
	if callbackURL != "" {
		session = transport.NewWebhookSession(req.UserID, callbackURL, nil)
	}

	var responder core.Responder
	var signaler core.ActivitySignaler
	if session != nil {
		responder = session
		signaler = session
	}

	out := h.Relay.Handle(core.Message{From: req.UserID, Body: req.Body}, responder, signaler)
	if out.Accepted {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(MessageResponse{
			Status: "accepted",
			UserID: req.UserID,
			Count:  out.Count,
		})
		return
	}

	switch out.Reason {
	case engine.ReasonBanned, engine.ReasonRateLimited:
		envelope := apperrors.NewRateLimitedError("Message rejected by rate limiting")
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"reason":   out.Reason,
			"retry_in": fmt.Sprintf("%.0fs", out.RetryIn.Seconds()),
		})
		if out.RetryIn > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", out.RetryIn.Seconds()))
		}
		respondWithError(w, r, envelope)
	case engine.ReasonEmpty:
		respondWithError(w, r, apperrors.NewValidationError("Message has no content"))
	default:
		respondWithError(w, r, apperrors.NewInternalError("Message handling failed"))
	}
}
