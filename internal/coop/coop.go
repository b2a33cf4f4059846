// Package coop implements the cooperative discovery mode: one shared
// board per room, every claim counts for the whole room, first claim of
// a champion wins. Rooms have no lobby or end phase; they live for as
// long as somebody is in them plus a grace window.
package coop

import (
	"context"
	"time"

	"github.com/champsdual-dev/champsdual/internal/protocol"
	"github.com/champsdual-dev/champsdual/internal/session"
	"github.com/champsdual-dev/champsdual/internal/timer"
	"go.uber.org/zap"
)

// registry is the slice of the hub a room needs to take itself down.
type registry interface {
	Remove(code string, r *Room)
}

type roomMsg interface{ isRoomMsg() }

// Join adds a player and replies with everything a late joiner needs to
// reconstruct the board: start time, claim history, standings.
type Join struct {
	Conn  session.Conn
	Name  string
	Reply chan JoinResult
}

// Claim is fire-and-forget; a duplicate claim is silently ignored.
type Claim struct {
	PlayerID     string
	ChampionID   string
	ChampionName string
}

type Disconnect struct {
	PlayerID string
}

type teardownFired struct{ gen int }

// getState is test-only: it reflects internal state without races.
type getState struct{ reply chan View }

func (Join) isRoomMsg()          {}
func (Claim) isRoomMsg()         {}
func (Disconnect) isRoomMsg()    {}
func (teardownFired) isRoomMsg() {}
func (getState) isRoomMsg()      {}

type JoinResult struct {
	StartTime int64
	Found     []protocol.ClaimEvent
	Players   []protocol.CoopPlayer
}

type View struct {
	Players []protocol.CoopPlayer
	Found   int
}

type playerState struct {
	conn  session.Conn
	name  string
	score int
}

// Room is a coop room actor. All state below is owned by the loop
// goroutine; the only way in is the inbox.
type Room struct {
	code      string
	startTime int64
	grace     time.Duration
	reg       registry
	log       *zap.Logger

	inbox  chan roomMsg
	ctx    context.Context
	cancel context.CancelFunc

	order    []string
	players  map[string]*playerState
	found    map[string]protocol.ClaimEvent
	claimed  []protocol.ClaimEvent // found, in claim order
	teardown timer.Timer
}

// New seeds the creator as the sole player and starts the loop.
func New(parent context.Context, code string, grace time.Duration, reg registry, log *zap.Logger, creator session.Conn, name string) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		code:      code,
		startTime: time.Now().UnixMilli(),
		grace:     grace,
		reg:       reg,
		log:       log.With(zap.String("mode", "coop"), zap.String("code", code)),
		inbox:     make(chan roomMsg, 64),
		ctx:       ctx,
		cancel:    cancel,
		players:   make(map[string]*playerState),
		found:     make(map[string]protocol.ClaimEvent),
	}
	r.addPlayer(creator, name)
	go r.loop()
	return r
}

func (r *Room) Code() string { return r.code }

func (r *Room) StartTime() int64 { return r.startTime }

// Stop ends the loop; used by the hub at shutdown.
func (r *Room) Stop() { r.cancel() }

// Done closes when the room is gone, so a caller waiting on a Reply
// channel is never stranded.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

// Post delivers a message to the room loop. It reports false when the
// room is already gone, which callers treat the same as a failed lookup.
func (r *Room) Post(m roomMsg) bool {
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)
			case Claim:
				r.handleClaim(msg)
			case Disconnect:
				r.handleDisconnect(msg)
			case teardownFired:
				r.handleTeardown(msg.gen)
			case getState:
				msg.reply <- View{Players: r.playerList(), Found: len(r.found)}
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	r.teardown.Disarm()
	r.addPlayer(msg.Conn, msg.Name)

	r.broadcastExcept(msg.Conn.ID(), protocol.Envelope{
		Type: protocol.MsgPlayerJoined,
		Payload: protocol.CoopPlayerJoined{
			ID:      msg.Conn.ID(),
			Name:    r.players[msg.Conn.ID()].name,
			Players: r.playerList(),
		},
	})

	history := make([]protocol.ClaimEvent, len(r.claimed))
	copy(history, r.claimed)
	msg.Reply <- JoinResult{
		StartTime: r.startTime,
		Found:     history,
		Players:   r.playerList(),
	}
	r.log.Info("player joined", zap.String("player", msg.Conn.ID()))
}

func (r *Room) handleClaim(msg Claim) {
	p, ok := r.players[msg.PlayerID]
	if !ok {
		return
	}
	// First claim wins. The loop processes one message at a time, so
	// this check-then-set cannot race with another claim.
	if _, taken := r.found[msg.ChampionID]; taken {
		return
	}

	ev := protocol.ClaimEvent{
		ChampionID:   msg.ChampionID,
		ChampionName: msg.ChampionName,
		PlayerID:     msg.PlayerID,
		PlayerName:   p.name,
		TS:           time.Now().UnixMilli(),
	}
	r.found[msg.ChampionID] = ev
	r.claimed = append(r.claimed, ev)
	p.score++

	r.broadcast(protocol.Envelope{
		Type:    protocol.MsgChampFound,
		Payload: protocol.ChampFound{ClaimEvent: ev, Players: r.playerList()},
	})
}

func (r *Room) handleDisconnect(msg Disconnect) {
	if _, ok := r.players[msg.PlayerID]; !ok {
		return
	}
	r.removePlayer(msg.PlayerID)

	r.broadcast(protocol.Envelope{
		Type:    protocol.MsgPlayerLeft,
		Payload: protocol.CoopPlayerLeft{ID: msg.PlayerID, Players: r.playerList()},
	})
	r.log.Info("player left", zap.String("player", msg.PlayerID))

	if len(r.players) == 0 {
		r.armTeardown()
	}
}

// armTeardown defers deletion by the grace window so a room that
// refills keeps operating. The fire re-checks emptiness, and Join
// disarms the timer, so a populated room is never deleted.
func (r *Room) armTeardown() {
	r.teardown.Arm(r.grace, func(gen int) {
		r.Post(teardownFired{gen: gen})
	})
}

func (r *Room) handleTeardown(gen int) {
	if !r.teardown.Live(gen) {
		return
	}
	r.teardown.Disarm()
	if len(r.players) > 0 {
		return
	}
	r.reg.Remove(r.code, r)
	r.log.Info("room torn down")
	r.cancel()
}

func (r *Room) addPlayer(conn session.Conn, name string) {
	if name == "" {
		name = "Guest"
	}
	r.players[conn.ID()] = &playerState{conn: conn, name: name}
	r.order = append(r.order, conn.ID())
}

func (r *Room) removePlayer(id string) {
	delete(r.players, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Room) playerList() []protocol.CoopPlayer {
	list := make([]protocol.CoopPlayer, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		list = append(list, protocol.CoopPlayer{ID: id, Name: p.name, Score: p.score})
	}
	return list
}

func (r *Room) broadcast(env protocol.Envelope) {
	for _, id := range r.order {
		r.players[id].conn.Send(env)
	}
}

func (r *Room) broadcastExcept(except string, env protocol.Envelope) {
	for _, id := range r.order {
		if id == except {
			continue
		}
		r.players[id].conn.Send(env)
	}
}
