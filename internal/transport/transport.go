// Package transport connects live delivery channels to the relay. A transport
// owns the connection to the user and implements the delivery surface the
// engine calls back into: fragment delivery and activity signaling.
package transport

import (
	"github.com/dialoq/dialoq/internal/core"
)

// Session is one user's live delivery channel. The engine holds it for the
// lifetime of the queued tasks it was attached to, which may outlive the
// underlying connection; implementations must tolerate delivery after
// disconnect and report it as an error rather than panic.
type Session interface {
	core.Responder
	core.ActivitySignaler

	// UserID identifies the user this session delivers to.
	UserID() string
}
