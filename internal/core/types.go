package core

import "time"

// Fragment is a single unit of response text delivered to a user. Long
// assistant replies are split into paragraph fragments and sent one by one.
type Fragment struct {
	Body string `json:"body"`
}

// Message is an inbound chat message as supplied by the transport layer.
type Message struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// Turn is a single exchange entry in a conversation transcript.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Conversation is the opaque per-user session handle passed through to the
// completion service. The drain worker owns it while a queue is active, so
// no locking is required here.
type Conversation struct {
	UserID string
	Turns  []Turn
}

// Append records a transcript turn.
func (c *Conversation) Append(role, text string) {
	c.Turns = append(c.Turns, Turn{Role: role, Text: text})
}

// Trim drops the oldest turns so at most max remain. A max of zero or less
// leaves the transcript untouched.
func (c *Conversation) Trim(max int) {
	if max <= 0 || len(c.Turns) <= max {
		return
	}
	c.Turns = append(c.Turns[:0], c.Turns[len(c.Turns)-max:]...)
}

// UserState holds everything the relay tracks for one user: the rate-limit
// window, an optional temporary ban, and the pending task queue.
//
// All fields are guarded by the owning store's lock; see store.Update.
type UserState struct {
	// MessageCount is the number of admitted messages in the current window.
	MessageCount int

	// WindowStart marks the beginning of the current rate-limit window.
	WindowStart time.Time

	// BanUntil, when set and in the future, blocks admission entirely.
	// Stale values are cleared lazily on the next check.
	BanUntil *time.Time

	// WarnedNearLimit dedupes the near-limit warning within a window.
	WarnedNearLimit bool

	// Queue holds pending tasks in arrival order. Nil once the drain
	// worker has emptied it.
	Queue []*Task

	// Draining is true while a worker is consuming Queue. It acts as a
	// per-user mutex: at most one drain loop runs per user.
	Draining bool

	// Conversation is the session transcript handed to the completion
	// service. Created on first admitted message.
	Conversation *Conversation
}

// Active reports whether the state is pinned by in-flight work and must not
// be evicted from the store.
func (s *UserState) Active() bool {
	return s != nil && (s.Draining || len(s.Queue) > 0)
}
