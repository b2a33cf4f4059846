package hub

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/champsdual-dev/champsdual/internal/codes"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRoom struct {
	code    string
	stopped chan struct{}
}

func newStubRoom(code string) *stubRoom {
	return &stubRoom{code: code, stopped: make(chan struct{})}
}

func (r *stubRoom) Stop() { close(r.stopped) }

func newHub(t *testing.T) *Hub[*stubRoom] {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New[*stubRoom](ctx, codes.NewGenerator('T'), zap.NewNop())
}

func TestCreateAndGetReturnSameRoom(t *testing.T) {
	h := newHub(t)

	var built *stubRoom
	code, ok := h.Create(func(c string) *stubRoom {
		built = newStubRoom(c)
		return built
	})
	require.True(t, ok)
	require.Equal(t, code, built.code)

	got, ok := h.Get(code)
	require.True(t, ok)
	require.Same(t, built, got)
}

func TestGetUnknownCode(t *testing.T) {
	h := newHub(t)

	_, ok := h.Get("TZZZZZ")
	require.False(t, ok)
}

func TestCodesAreUniqueAndPrefixed(t *testing.T) {
	h := newHub(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, _ := h.Create(newStubRoom)
		require.Len(t, code, 6)
		require.True(t, strings.HasPrefix(code, "T"))
		require.False(t, seen[code], "code %s issued twice", code)
		seen[code] = true
	}
}

func TestRemoveDeletesRoom(t *testing.T) {
	h := newHub(t)

	var room *stubRoom
	code, _ := h.Create(func(c string) *stubRoom {
		room = newStubRoom(c)
		return room
	})

	h.Remove(code, room)
	_, ok := h.Get(code)
	require.False(t, ok)
}

func TestStaleRemoveKeepsNewInstance(t *testing.T) {
	h := newHub(t)

	var first, second *stubRoom
	h.Create(func(c string) *stubRoom {
		first = newStubRoom(c)
		return first
	})
	code, _ := h.Create(func(c string) *stubRoom {
		second = newStubRoom(c)
		return second
	})

	// A remove naming the wrong instance is a stale teardown and must
	// not evict the room actually registered under the code.
	h.Remove(code, first)
	got, ok := h.Get(code)
	require.True(t, ok)
	require.Same(t, second, got)
}

func TestShutdownStopsEveryRoom(t *testing.T) {
	h := newHub(t)

	var rooms []*stubRoom
	for i := 0; i < 3; i++ {
		h.Create(func(c string) *stubRoom {
			r := newStubRoom(c)
			rooms = append(rooms, r)
			return r
		})
	}

	h.Shutdown()
	for _, r := range rooms {
		select {
		case <-r.stopped:
		case <-time.After(time.Second):
			t.Fatal("room not stopped on shutdown")
		}
	}
}

func TestCallsAfterShutdownReturn(t *testing.T) {
	h := newHub(t)

	var room *stubRoom
	code, ok := h.Create(func(c string) *stubRoom {
		room = newStubRoom(c)
		return room
	})
	require.True(t, ok)

	h.Shutdown()
	<-room.stopped

	// Every entry point must come back instead of hanging on a loop
	// that is no longer reading.
	_, ok = h.Get(code)
	require.False(t, ok)
	_, ok = h.Create(newStubRoom)
	require.False(t, ok)
	h.Remove(code, room)
	h.Shutdown()
}
