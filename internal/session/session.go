// Package session holds the per-connection state the dispatcher needs:
// an ephemeral identity, a display name, the room the connection is in
// for each mode, and the outbox its writer goroutine drains.
package session

import (
	"github.com/champsdual-dev/champsdual/internal/protocol"
	"github.com/google/uuid"
)

const defaultName = "Guest"

// Conn is how room engines address a connected player. Session is the
// production implementation; tests use in-memory fakes.
type Conn interface {
	ID() string
	Send(env protocol.Envelope)
}

// Session is created when a websocket connects and dies with it. The
// room-code fields are owned by the connection's read loop; rooms only
// touch the identity and the outbox.
type Session struct {
	id   string
	name string
	out  chan protocol.Envelope

	// at most one room per mode
	CoopRoom   string
	DuelRoom   string
	BattleRoom string
}

func New() *Session {
	return &Session{
		id:   uuid.NewString(),
		name: defaultName,
		out:  make(chan protocol.Envelope, 64),
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Name() string { return s.name }

// SetName applies the display name from a create/join payload, keeping
// the default when the client sent nothing.
func (s *Session) SetName(name string) {
	if name != "" {
		s.name = name
	}
}

// Send queues an outbound frame without blocking. A full outbox means
// the client has stopped reading; the frame is dropped and the
// connection's own read loop will notice the dead peer soon enough.
func (s *Session) Send(env protocol.Envelope) {
	select {
	case s.out <- env:
	default:
	}
}

// Out is drained by the connection's writer goroutine.
func (s *Session) Out() <-chan protocol.Envelope { return s.out }
