package core

// Responder is the response-emission capability a task carries. Fragments
// are delivered in order; a failed delivery is the transport's problem, not
// the drain worker's.
type Responder interface {
	Send(fragments []Fragment) error
}

// ActivitySignaler lets the heartbeat tell the transport that work is still
// in progress (e.g. a typing indicator).
type ActivitySignaler interface {
	SignalActivity() error
}

// Task is one queued message waiting for the completion service. Tasks are
// immutable after creation; ownership moves from the admission path to the
// drain worker on dequeue.
type Task struct {
	Body      string
	Responder Responder
	Signaler  ActivitySignaler
	Convo     *Conversation
}
