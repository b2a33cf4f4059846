// Package duel implements the two-player race mode: both players hunt
// champions privately, first to the configured target wins. With attack
// mode on, a claim streak lets a player knock one champion back out of
// the opponent's claimed set.
package duel

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/champsdual-dev/champsdual/internal/protocol"
	"github.com/champsdual-dev/champsdual/internal/session"
	"github.com/champsdual-dev/champsdual/internal/timer"
	"go.uber.org/zap"
)

var (
	ErrAlreadyStarted = errors.New("game already started")
	ErrRoomFull       = errors.New("room is full")
)

type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhasePlaying Phase = "playing"
	PhaseOver    Phase = "over"
)

const maxPlayers = 2

// Config carries the timings a room needs; tests shrink them.
type Config struct {
	ReadyTimeout time.Duration
	Grace        time.Duration
}

type registry interface {
	Remove(code string, r *Room)
}

type roomMsg interface{ isRoomMsg() }

type Join struct {
	Conn  session.Conn
	Name  string
	Reply chan JoinResult
}

// SetOptions is honored only from the host while in the lobby;
// anything else is a silent no-op.
type SetOptions struct {
	PlayerID string
	Options  *protocol.DuelOptions
}

type Ready struct{ PlayerID string }

type Claim struct {
	PlayerID   string
	ChampionID string
}

// Rejoin is the "play again" path: it resets everyone's progress and
// puts the whole room back in the lobby.
type Rejoin struct{ PlayerID string }

type Disconnect struct{ PlayerID string }

type readyFired struct{ gen int }
type gameFired struct{ gen int }
type teardownFired struct{ gen int }

type getState struct{ reply chan View }

func (Join) isRoomMsg()          {}
func (SetOptions) isRoomMsg()    {}
func (Ready) isRoomMsg()         {}
func (Claim) isRoomMsg()         {}
func (Rejoin) isRoomMsg()        {}
func (Disconnect) isRoomMsg()    {}
func (readyFired) isRoomMsg()    {}
func (gameFired) isRoomMsg()     {}
func (teardownFired) isRoomMsg() {}
func (getState) isRoomMsg()      {}

type JoinResult struct {
	Err     error
	Players []protocol.DuelPlayer
	Options protocol.DuelOptions
}

type View struct {
	Phase   Phase
	Players []protocol.DuelPlayer
	Options protocol.DuelOptions
}

type playerState struct {
	id       string
	name     string
	conn     session.Conn
	found    int
	foundIDs map[string]struct{}
	streak   int
	ready    bool
}

// Room is a duel room actor. The player slice is insertion-ordered; the
// host is always players[0].
type Room struct {
	code string
	cfg  Config
	reg  registry
	log  *zap.Logger

	inbox  chan roomMsg
	ctx    context.Context
	cancel context.CancelFunc

	phase   Phase
	players []*playerState
	opts    protocol.DuelOptions

	readyTimer timer.Timer
	gameTimer  timer.Timer
	teardown   timer.Timer
}

func New(parent context.Context, code string, cfg Config, reg registry, log *zap.Logger, creator session.Conn, name string, opts *protocol.DuelOptions) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		code:   code,
		cfg:    cfg,
		reg:    reg,
		log:    log.With(zap.String("mode", "duel"), zap.String("code", code)),
		inbox:  make(chan roomMsg, 64),
		ctx:    ctx,
		cancel: cancel,
		phase:  PhaseLobby,
		opts:   sanitizeOptions(opts),
	}
	r.addPlayer(creator, name)
	go r.loop()
	return r
}

func (r *Room) Code() string { return r.code }

func (r *Room) Stop() { r.cancel() }

func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

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
			case SetOptions:
				r.handleSetOptions(msg)
			case Ready:
				r.handleReady(msg.PlayerID)
			case Claim:
				r.handleClaim(msg)
			case Rejoin:
				r.handleRejoin(msg.PlayerID)
			case Disconnect:
				r.handleDisconnect(msg.PlayerID)
			case readyFired:
				r.handleReadyTimeout(msg.gen)
			case gameFired:
				r.handleGameTimeout(msg.gen)
			case teardownFired:
				r.handleTeardown(msg.gen)
			case getState:
				msg.reply <- View{Phase: r.phase, Players: r.playerList(), Options: r.opts}
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	if r.phase != PhaseLobby {
		msg.Reply <- JoinResult{Err: ErrAlreadyStarted}
		return
	}
	if len(r.players) >= maxPlayers {
		msg.Reply <- JoinResult{Err: ErrRoomFull}
		return
	}
	r.teardown.Disarm()
	p := r.addPlayer(msg.Conn, msg.Name)

	r.broadcastExcept(p.id, protocol.Envelope{
		Type: protocol.MsgPlayerJoined,
		Payload: protocol.DuelPlayerJoined{
			ID:      p.id,
			Name:    p.name,
			Players: r.playerList(),
		},
	})
	msg.Reply <- JoinResult{Players: r.playerList(), Options: r.opts}
	r.log.Info("player joined", zap.String("player", p.id))
}

func (r *Room) handleSetOptions(msg SetOptions) {
	if r.phase != PhaseLobby {
		return
	}
	// Host only: the first-joined player owns the settings.
	if len(r.players) == 0 || r.players[0].id != msg.PlayerID {
		return
	}
	r.opts = sanitizeOptions(msg.Options)
	r.broadcastExcept(msg.PlayerID, protocol.Envelope{
		Type:    protocol.MsgDuelOptionsSet,
		Payload: protocol.DuelOptionsSet{Options: r.opts},
	})
}

func (r *Room) handleReady(id string) {
	if r.phase != PhaseLobby {
		return
	}
	p := r.find(id)
	if p == nil {
		return
	}
	p.ready = true
	r.broadcast(protocol.Envelope{
		Type:    protocol.MsgDuelReadyState,
		Payload: protocol.DuelReadyState{Players: r.playerList()},
	})

	if r.allReady() {
		r.start()
		return
	}
	// The fallback timer is armed by the first ready signal and left
	// alone afterwards; all-ready beats it by disarming in start.
	if !r.readyTimer.Armed() {
		r.readyTimer.Arm(r.cfg.ReadyTimeout, func(gen int) {
			r.Post(readyFired{gen: gen})
		})
	}
}

func (r *Room) handleReadyTimeout(gen int) {
	if !r.readyTimer.Live(gen) {
		return
	}
	r.readyTimer.Disarm()
	if r.phase != PhaseLobby || len(r.players) == 0 {
		return
	}
	r.start()
}

func (r *Room) start() {
	r.readyTimer.Disarm()
	r.phase = PhasePlaying
	r.broadcast(protocol.Envelope{
		Type:    protocol.MsgDuelStart,
		Payload: protocol.DuelStart{Options: r.opts},
	})
	r.gameTimer.Arm(time.Duration(r.opts.DurationMin)*time.Minute, func(gen int) {
		r.Post(gameFired{gen: gen})
	})
	r.log.Info("duel started",
		zap.Int("duration_min", r.opts.DurationMin),
		zap.Int("target", r.opts.ChampionTarget))
}

func (r *Room) handleClaim(msg Claim) {
	if r.phase != PhasePlaying {
		return
	}
	p := r.find(msg.PlayerID)
	if p == nil {
		return
	}
	// Idempotent per player: re-claiming a champion you already have
	// changes nothing.
	if _, dup := p.foundIDs[msg.ChampionID]; dup {
		return
	}
	p.foundIDs[msg.ChampionID] = struct{}{}
	p.found++
	p.streak++

	opp := r.opponent(p)
	if opp != nil {
		// The streak is race pressure, not a private stat: scoring
		// resets the other player's run.
		opp.streak = 0
	}

	r.broadcast(protocol.Envelope{
		Type: protocol.MsgDuelClaimed,
		Payload: protocol.DuelClaimed{
			PlayerID:   p.id,
			ChampionID: msg.ChampionID,
			Players:    r.playerList(),
		},
	})

	// Reaching the target pre-empts any attack logic on the same claim.
	if p.found >= r.opts.ChampionTarget {
		r.endGame(p.id, "target")
		return
	}

	if r.opts.AttackMode && p.streak >= r.opts.AttackThreshold {
		p.streak = 0
		r.attack(p, opp)
	}
}

// attack revokes one of the opponent's claimed champions, chosen
// uniformly at random. No-op when there is nothing to revoke.
func (r *Room) attack(attacker, target *playerState) {
	if target == nil || target.found == 0 {
		return
	}
	ids := make([]string, 0, len(target.foundIDs))
	for id := range target.foundIDs {
		ids = append(ids, id)
	}
	revoked := ids[rand.Intn(len(ids))]
	delete(target.foundIDs, revoked)
	target.found--

	r.broadcast(protocol.Envelope{
		Type: protocol.MsgDuelAttacked,
		Payload: protocol.DuelAttacked{
			AttackerID: attacker.id,
			TargetID:   target.id,
			ChampionID: revoked,
			Players:    r.playerList(),
		},
	})
	r.log.Info("attack", zap.String("attacker", attacker.id), zap.String("revoked", revoked))
}

func (r *Room) handleGameTimeout(gen int) {
	if !r.gameTimer.Live(gen) {
		return
	}
	r.gameTimer.Disarm()
	if r.phase != PhasePlaying {
		return
	}
	// Time expired with nobody at the target: strictly higher count
	// wins, an exact tie crowns no one.
	winner := ""
	best := -1
	tied := false
	for _, p := range r.players {
		switch {
		case p.found > best:
			best = p.found
			winner = p.id
			tied = false
		case p.found == best:
			tied = true
		}
	}
	if tied {
		winner = ""
	}
	r.endGame(winner, "timeout")
}

func (r *Room) endGame(winnerID, reason string) {
	r.phase = PhaseOver
	r.gameTimer.Disarm()
	r.readyTimer.Disarm()
	r.broadcast(protocol.Envelope{
		Type: protocol.MsgDuelOver,
		Payload: protocol.DuelOver{
			WinnerID: winnerID,
			Reason:   reason,
			Players:  r.playerList(),
		},
	})
	r.log.Info("duel over", zap.String("winner", winnerID), zap.String("reason", reason))
}

func (r *Room) handleRejoin(id string) {
	if r.find(id) == nil {
		return
	}
	r.gameTimer.Disarm()
	r.readyTimer.Disarm()
	r.phase = PhaseLobby
	for _, p := range r.players {
		p.ready = false
		p.found = 0
		p.foundIDs = make(map[string]struct{})
		p.streak = 0
	}
	r.broadcast(protocol.Envelope{
		Type:    protocol.MsgDuelRestart,
		Payload: protocol.DuelRestart{Players: r.playerList()},
	})
}

func (r *Room) handleDisconnect(id string) {
	p := r.find(id)
	if p == nil {
		return
	}
	r.removePlayer(id)
	r.log.Info("player left", zap.String("player", id))

	if len(r.players) == 0 {
		r.readyTimer.Disarm()
		r.gameTimer.Disarm()
		r.armTeardown()
		return
	}

	r.broadcast(protocol.Envelope{
		Type:    protocol.MsgPlayerLeft,
		Payload: protocol.DuelPlayerLeft{ID: id, Players: r.playerList()},
	})

	// Mid-game desertion is a walkover for whoever stayed.
	if r.phase == PhasePlaying && len(r.players) == 1 {
		r.endGame(r.players[0].id, "walkover")
	}
}

func (r *Room) armTeardown() {
	r.teardown.Arm(r.cfg.Grace, func(gen int) {
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

func (r *Room) addPlayer(conn session.Conn, name string) *playerState {
	if name == "" {
		name = "Guest"
	}
	p := &playerState{
		id:       conn.ID(),
		name:     name,
		conn:     conn,
		foundIDs: make(map[string]struct{}),
	}
	r.players = append(r.players, p)
	return p
}

func (r *Room) removePlayer(id string) {
	for i, p := range r.players {
		if p.id == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return
		}
	}
}

func (r *Room) find(id string) *playerState {
	for _, p := range r.players {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (r *Room) opponent(p *playerState) *playerState {
	for _, other := range r.players {
		if other.id != p.id {
			return other
		}
	}
	return nil
}

func (r *Room) allReady() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.ready {
			return false
		}
	}
	return true
}

func (r *Room) playerList() []protocol.DuelPlayer {
	list := make([]protocol.DuelPlayer, 0, len(r.players))
	for _, p := range r.players {
		list = append(list, protocol.DuelPlayer{
			ID:     p.id,
			Name:   p.name,
			Found:  p.found,
			Streak: p.streak,
			Ready:  p.ready,
		})
	}
	return list
}

func (r *Room) broadcast(env protocol.Envelope) {
	for _, p := range r.players {
		p.conn.Send(env)
	}
}

func (r *Room) broadcastExcept(except string, env protocol.Envelope) {
	for _, p := range r.players {
		if p.id == except {
			continue
		}
		p.conn.Send(env)
	}
}
