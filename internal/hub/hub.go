// Package hub is the per-mode room registry. Each game mode owns one
// Hub instance; all creation, lookup and removal go through its loop,
// so code generation is collision-checked atomically and the map is
// never touched concurrently.
package hub

import (
	"context"

	"github.com/champsdual-dev/champsdual/internal/codes"
	"go.uber.org/zap"
)

// Room is what a Hub stores. The concrete type is the mode's room
// actor; comparable so removal can be instance-checked.
type Room interface {
	comparable
	Stop()
}

type hubMsg[R Room] interface{ isHubMsg() }

type createRoom[R Room] struct {
	build func(code string) R
	reply chan string
}

type getRoom[R Room] struct {
	code  string
	reply chan getResult[R]
}

type getResult[R Room] struct {
	room R
	ok   bool
}

type removeRoom[R Room] struct {
	code string
	room R
}

type shutdown[R Room] struct{}

func (createRoom[R]) isHubMsg() {}
func (getRoom[R]) isHubMsg()    {}
func (removeRoom[R]) isHubMsg() {}
func (shutdown[R]) isHubMsg()   {}

type Hub[R Room] struct {
	inbox chan hubMsg[R]
	rooms map[string]R
	gen   *codes.Generator
	log   *zap.Logger
	ctx   context.Context
	done  chan struct{}
}

func New[R Room](ctx context.Context, gen *codes.Generator, log *zap.Logger) *Hub[R] {
	h := &Hub[R]{
		inbox: make(chan hubMsg[R], 64),
		rooms: make(map[string]R),
		gen:   gen,
		log:   log,
		ctx:   ctx,
		done:  make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub[R]) loop() {
	// done unblocks every caller still waiting on a reply once the
	// loop is gone.
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.stopAll()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case createRoom[R]:
				code := h.freshCode()
				h.rooms[code] = msg.build(code)
				h.log.Info("room created", zap.String("code", code))
				msg.reply <- code

			case getRoom[R]:
				room, ok := h.rooms[msg.code]
				msg.reply <- getResult[R]{room: room, ok: ok}

			case removeRoom[R]:
				// Only remove the exact instance that asked: a room
				// re-created under a recycled code must survive a
				// stale teardown.
				if current, ok := h.rooms[msg.code]; ok && current == msg.room {
					delete(h.rooms, msg.code)
					h.log.Info("room removed", zap.String("code", msg.code))
				}

			case shutdown[R]:
				h.stopAll()
				return
			}
		}
	}
}

func (h *Hub[R]) stopAll() {
	for code, room := range h.rooms {
		room.Stop()
		delete(h.rooms, code)
	}
}

func (h *Hub[R]) freshCode() string {
	for {
		code, err := h.gen.Next()
		if err != nil {
			// crypto/rand failing means the process is beyond help
			h.log.Error("code generation failed", zap.Error(err))
			continue
		}
		if _, taken := h.rooms[code]; !taken {
			return code
		}
	}
}

// Create generates a unique code, builds the room under it and
// registers it. build runs inside the hub loop. ok is false when the
// hub has already shut down.
func (h *Hub[R]) Create(build func(code string) R) (string, bool) {
	reply := make(chan string, 1)
	select {
	case h.inbox <- createRoom[R]{build: build, reply: reply}:
	case <-h.done:
		return "", false
	}
	select {
	case code := <-reply:
		return code, true
	case <-h.done:
		return "", false
	}
}

// Get looks up a room by code.
func (h *Hub[R]) Get(code string) (R, bool) {
	reply := make(chan getResult[R], 1)
	select {
	case h.inbox <- getRoom[R]{code: code, reply: reply}:
	case <-h.done:
		var zero R
		return zero, false
	}
	select {
	case res := <-reply:
		return res.room, res.ok
	case <-h.done:
		var zero R
		return zero, false
	}
}

// Remove deletes the room, but only if it is still the registered
// instance under that code.
func (h *Hub[R]) Remove(code string, room R) {
	select {
	case h.inbox <- removeRoom[R]{code: code, room: room}:
	case <-h.done:
	}
}

// Shutdown stops every room and ends the loop.
func (h *Hub[R]) Shutdown() {
	select {
	case h.inbox <- shutdown[R]{}:
	case <-h.done:
	}
}
