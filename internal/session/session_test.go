package session

import (
	"testing"

	"github.com/champsdual-dev/champsdual/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestNewSessionDefaults(t *testing.T) {
	a, b := New(), New()
	require.NotEmpty(t, a.ID())
	require.NotEqual(t, a.ID(), b.ID())
	require.Equal(t, "Guest", a.Name())
}

func TestSetNameKeepsDefaultOnEmpty(t *testing.T) {
	s := New()
	s.SetName("")
	require.Equal(t, "Guest", s.Name())
	s.SetName("Alice")
	require.Equal(t, "Alice", s.Name())
}

func TestSendDropsWhenOutboxFull(t *testing.T) {
	s := New()
	for i := 0; i < 100; i++ {
		s.Send(protocol.Envelope{Type: protocol.MsgPlayerJoined})
	}
	// Never blocked; the outbox holds its capacity and the rest were
	// dropped.
	require.Len(t, s.Out(), 64)
}
