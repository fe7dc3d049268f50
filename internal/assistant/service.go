package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dialoq/dialoq/internal/core"
)

const (
	defaultTimeout = 60 * time.Second
	maxTimeout     = 5 * time.Minute

	// defaultMaxHistory bounds the transcript sent with each request.
	defaultMaxHistory = 20
)

// Service turns a user message plus conversation transcript into a single
// completion call. It is the concrete "ask" collaborator the drain worker
// invokes once per task.
type Service struct {
	Driver       Driver
	AssistantID  string // model identifier sent to the provider
	SystemPrompt string
	Timeout      time.Duration
	MaxHistory   int
}

// Ask sends text on behalf of the conversation's user and returns the
// assistant's reply. On success the user and assistant turns are appended to
// the transcript; a failed call leaves the transcript untouched.
//
// The caller (the drain worker) serializes calls per user, so the
// conversation is mutated without locking here.
func (s *Service) Ask(ctx context.Context, convo *core.Conversation, text string) (string, error) {
	if s == nil || s.Driver == nil {
		return "", errors.New("assistant driver not configured")
	}
	if strings.TrimSpace(s.AssistantID) == "" {
		return "", errors.New("assistant id not configured")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("message text is required")
	}

	messages := s.buildMessages(convo, text)

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if timeout > maxTimeout {
		timeout = maxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := s.Driver.Complete(ctx, &Request{
		Model:    s.AssistantID,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}

	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return "", errors.New("empty response content")
	}

	if convo != nil {
		convo.Append("user", text)
		convo.Append("assistant", reply)
		convo.Trim(s.historyLimit())
	}

	return reply, nil
}

func (s *Service) buildMessages(convo *core.Conversation, text string) []Message {
	messages := make([]Message, 0, 2)

	if prompt := strings.TrimSpace(s.SystemPrompt); prompt != "" {
		messages = append(messages, Message{Role: "system", Content: prompt})
	}

	if convo != nil {
		for _, turn := range convo.Turns {
			messages = append(messages, Message{Role: turn.Role, Content: turn.Text})
		}
	}

	return append(messages, Message{Role: "user", Content: text})
}

func (s *Service) historyLimit() int {
	if s.MaxHistory > 0 {
		return s.MaxHistory
	}
	return defaultMaxHistory
}
