package coop

import (
	"context"
	"testing"
	"time"

	"github.com/champsdual-dev/champsdual/internal/protocol"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	id  string
	out chan protocol.Envelope
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, out: make(chan protocol.Envelope, 32)}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(env protocol.Envelope) {
	select {
	case c.out <- env:
	default:
	}
}

type fakeRegistry struct {
	removed chan string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{removed: make(chan string, 4)}
}

func (f *fakeRegistry) Remove(code string, r *Room) { f.removed <- code }

// recvType receives the next broadcast and asserts its type, with a
// timeout so tests never hang.
func recvType(t *testing.T, c *fakeConn, want protocol.MessageType) protocol.Envelope {
	t.Helper()
	select {
	case env := <-c.out:
		require.Equal(t, want, env.Type)
		return env
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", want)
		return protocol.Envelope{}
	}
}

func recvNothing(t *testing.T, c *fakeConn, within time.Duration) {
	t.Helper()
	select {
	case env := <-c.out:
		t.Fatalf("expected no broadcast within %v, got %s", within, env.Type)
	case <-time.After(within):
	}
}

func view(t *testing.T, r *Room) View {
	t.Helper()
	reply := make(chan View, 1)
	require.True(t, r.Post(getState{reply: reply}))
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for view")
		return View{}
	}
}

func join(t *testing.T, r *Room, c *fakeConn, name string) JoinResult {
	t.Helper()
	reply := make(chan JoinResult, 1)
	require.True(t, r.Post(Join{Conn: c, Name: name, Reply: reply}))
	select {
	case res := <-reply:
		return res
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for join result")
		return JoinResult{}
	}
}

func newRoom(t *testing.T, grace time.Duration, creator *fakeConn) (*Room, *fakeRegistry) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	reg := newFakeRegistry()
	r := New(ctx, "CTEST2", grace, reg, zap.NewNop(), creator, "Alice")
	return r, reg
}

func TestJoinReturnsHistoryAndNotifiesRoom(t *testing.T) {
	a := newFakeConn("a")
	b := newFakeConn("b")
	r, _ := newRoom(t, time.Hour, a)

	r.Post(Claim{PlayerID: "a", ChampionID: "42", ChampionName: "Zed"})
	recvType(t, a, protocol.MsgChampFound)

	res := join(t, r, b, "Bob")
	require.Equal(t, r.StartTime(), res.StartTime)
	require.Len(t, res.Found, 1)
	require.Equal(t, "42", res.Found[0].ChampionID)
	require.Equal(t, "a", res.Found[0].PlayerID)
	require.Len(t, res.Players, 2)

	env := recvType(t, a, protocol.MsgPlayerJoined)
	payload := env.Payload.(protocol.CoopPlayerJoined)
	require.Equal(t, "b", payload.ID)
	require.Equal(t, "Bob", payload.Name)
	require.Len(t, payload.Players, 2)
}

func TestFirstClaimWins(t *testing.T) {
	a := newFakeConn("a")
	b := newFakeConn("b")
	r, _ := newRoom(t, time.Hour, a)
	join(t, r, b, "Bob")
	recvType(t, a, protocol.MsgPlayerJoined)

	// A claims champion 42; everyone, claimer included, hears it.
	r.Post(Claim{PlayerID: "a", ChampionID: "42", ChampionName: "Zed"})
	envA := recvType(t, a, protocol.MsgChampFound)
	recvType(t, b, protocol.MsgChampFound)
	found := envA.Payload.(protocol.ChampFound)
	require.Equal(t, "a", found.PlayerID)

	// B re-claims the same champion: a silent no-op.
	r.Post(Claim{PlayerID: "b", ChampionID: "42", ChampionName: "Zed"})
	recvNothing(t, a, 100*time.Millisecond)
	recvNothing(t, b, 100*time.Millisecond)

	v := view(t, r)
	require.Equal(t, 1, v.Found)
	require.Equal(t, 1, v.Players[0].Score) // a
	require.Equal(t, 0, v.Players[1].Score) // b
}

func TestDefaultName(t *testing.T) {
	a := newFakeConn("a")
	b := newFakeConn("b")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r := New(ctx, "CTEST3", time.Hour, newFakeRegistry(), zap.NewNop(), a, "")
	join(t, r, b, "")

	v := view(t, r)
	require.Equal(t, "Guest", v.Players[0].Name)
	require.Equal(t, "Guest", v.Players[1].Name)
}

func TestDisconnectBroadcastsLeft(t *testing.T) {
	a := newFakeConn("a")
	b := newFakeConn("b")
	r, _ := newRoom(t, time.Hour, a)
	join(t, r, b, "Bob")
	recvType(t, a, protocol.MsgPlayerJoined)

	r.Post(Disconnect{PlayerID: "a"})
	env := recvType(t, b, protocol.MsgPlayerLeft)
	payload := env.Payload.(protocol.CoopPlayerLeft)
	require.Equal(t, "a", payload.ID)
	require.Len(t, payload.Players, 1)
}

func TestEmptyRoomTearsDownAfterGrace(t *testing.T) {
	a := newFakeConn("a")
	r, reg := newRoom(t, 50*time.Millisecond, a)

	r.Post(Disconnect{PlayerID: "a"})

	select {
	case code := <-reg.removed:
		require.Equal(t, "CTEST2", code)
	case <-time.After(time.Second):
		t.Fatal("expected teardown after grace window")
	}

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("expected room loop to stop")
	}
}

func TestRefillBeforeGraceCancelsTeardown(t *testing.T) {
	a := newFakeConn("a")
	b := newFakeConn("b")
	r, reg := newRoom(t, 100*time.Millisecond, a)

	r.Post(Disconnect{PlayerID: "a"})
	join(t, r, b, "Bob")

	// Well past the grace window: the refilled room must survive.
	select {
	case code := <-reg.removed:
		t.Fatalf("room %s deleted despite refill", code)
	case <-time.After(300 * time.Millisecond):
	}

	v := view(t, r)
	require.Len(t, v.Players, 1)
}

func TestClaimFromUnknownPlayerIgnored(t *testing.T) {
	a := newFakeConn("a")
	r, _ := newRoom(t, time.Hour, a)

	r.Post(Claim{PlayerID: "ghost", ChampionID: "42", ChampionName: "Zed"})
	recvNothing(t, a, 100*time.Millisecond)
	require.Equal(t, 0, view(t, r).Found)
}
