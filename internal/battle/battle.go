// Package battle implements the synchronized survival mode: everybody
// hunts the same clock, one champion per round, score accumulating over
// a fixed number of rounds. A round ends when every present player has
// claimed or its timer runs out, whichever comes first.
package battle

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/champsdual-dev/champsdual/internal/protocol"
	"github.com/champsdual-dev/champsdual/internal/session"
	"github.com/champsdual-dev/champsdual/internal/timer"
	"go.uber.org/zap"
)

var ErrGameOver = errors.New("game is over")

type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhasePlaying Phase = "playing"
	PhaseOver    Phase = "over"
)

// Config carries the timings and round count; tests shrink them.
type Config struct {
	Rounds        int
	RoundDuration time.Duration
	Countdown     time.Duration
	ReadyTimeout  time.Duration
	Grace         time.Duration
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

type Ready struct{ PlayerID string }

type Claim struct {
	PlayerID   string
	ChampionID string
}

type Disconnect struct{ PlayerID string }

type readyFired struct{ gen int }
type roundFired struct{ gen int }
type countdownFired struct{ gen int }
type teardownFired struct{ gen int }

type getState struct{ reply chan View }

func (Join) isRoomMsg()           {}
func (Ready) isRoomMsg()          {}
func (Claim) isRoomMsg()          {}
func (Disconnect) isRoomMsg()     {}
func (readyFired) isRoomMsg()     {}
func (roundFired) isRoomMsg()     {}
func (countdownFired) isRoomMsg() {}
func (teardownFired) isRoomMsg()  {}
func (getState) isRoomMsg()       {}

type JoinResult struct {
	Err     error
	Players []protocol.BattlePlayer
	Phase   Phase
	Round   int
}

type View struct {
	Phase     Phase
	Round     int
	Advancing bool
	Players   []protocol.BattlePlayer
}

type playerState struct {
	id    string
	name  string
	conn  session.Conn
	score int
	ready bool
	found bool // claimed this round
}

// Room is a battle room actor. Players are kept in join order, which
// doubles as the standings tie-break.
type Room struct {
	code string
	cfg  Config
	reg  registry
	log  *zap.Logger

	inbox  chan roomMsg
	ctx    context.Context
	cancel context.CancelFunc

	phase      Phase
	players    []*playerState
	round      int
	foundCount int
	// advancing guards the inter-round transition: the round timer and
	// the all-claimed check can both try to end the same round, and
	// only the first may win.
	advancing bool

	readyTimer     timer.Timer
	roundTimer     timer.Timer
	countdownTimer timer.Timer
	teardown       timer.Timer
}

func New(parent context.Context, code string, cfg Config, reg registry, log *zap.Logger, creator session.Conn, name string) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		code:   code,
		cfg:    cfg,
		reg:    reg,
		log:    log.With(zap.String("mode", "battle"), zap.String("code", code)),
		inbox:  make(chan roomMsg, 64),
		ctx:    ctx,
		cancel: cancel,
		phase:  PhaseLobby,
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
			case Ready:
				r.handleReady(msg.PlayerID)
			case Claim:
				r.handleClaim(msg)
			case Disconnect:
				r.handleDisconnect(msg.PlayerID)
			case readyFired:
				r.handleReadyTimeout(msg.gen)
			case roundFired:
				r.handleRoundTimeout(msg.gen)
			case countdownFired:
				r.handleCountdown(msg.gen)
			case teardownFired:
				r.handleTeardown(msg.gen)
			case getState:
				msg.reply <- View{
					Phase:     r.phase,
					Round:     r.round,
					Advancing: r.advancing,
					Players:   r.playerList(),
				}
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	// A finished game is closed; anything earlier is joinable, and a
	// mid-game joiner gets the phase and round to sync against.
	if r.phase == PhaseOver {
		msg.Reply <- JoinResult{Err: ErrGameOver}
		return
	}
	r.teardown.Disarm()
	p := r.addPlayer(msg.Conn, msg.Name)

	r.broadcastExcept(p.id, protocol.Envelope{
		Type: protocol.MsgPlayerJoined,
		Payload: protocol.BattlePlayerJoined{
			ID:      p.id,
			Name:    p.name,
			Players: r.playerList(),
		},
	})
	msg.Reply <- JoinResult{Players: r.playerList(), Phase: r.phase, Round: r.round}
	r.log.Info("player joined", zap.String("player", p.id))
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
		Type:    protocol.MsgBattleReadyState,
		Payload: protocol.BattleReadyState{Players: r.playerList()},
	})

	if r.allReady() {
		r.start()
		return
	}
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

// start broadcasts the game start and rolls straight into round 1.
func (r *Room) start() {
	r.readyTimer.Disarm()
	r.phase = PhasePlaying
	r.round = 0
	r.broadcast(protocol.Envelope{
		Type:    protocol.MsgBattleStart,
		Payload: protocol.BattleStart{Rounds: r.cfg.Rounds},
	})
	r.log.Info("battle started", zap.Int("rounds", r.cfg.Rounds))
	r.advanceRound()
}

func (r *Room) advanceRound() {
	r.round++
	if r.round > r.cfg.Rounds {
		r.end()
		return
	}
	for _, p := range r.players {
		p.found = false
	}
	r.foundCount = 0
	r.broadcast(protocol.Envelope{
		Type: protocol.MsgBattleRound,
		Payload: protocol.BattleRound{
			Round:    r.round,
			Rounds:   r.cfg.Rounds,
			Duration: int(r.cfg.RoundDuration / time.Second),
			Players:  r.playerList(),
		},
	})
	r.roundTimer.Arm(r.cfg.RoundDuration, func(gen int) {
		r.Post(roundFired{gen: gen})
	})
}

func (r *Room) handleClaim(msg Claim) {
	if r.phase != PhasePlaying || r.advancing {
		return
	}
	p := r.find(msg.PlayerID)
	if p == nil || p.found {
		return
	}
	p.found = true
	p.score++
	r.foundCount++

	r.broadcast(protocol.Envelope{
		Type: protocol.MsgBattleClaimed,
		Payload: protocol.BattleClaimed{
			PlayerID:   msg.PlayerID,
			ChampionID: msg.ChampionID,
			Players:    r.playerList(),
		},
	})

	// Everybody found it: no point waiting out the clock.
	if r.foundCount >= len(r.players) {
		r.interRound()
	}
}

func (r *Room) handleRoundTimeout(gen int) {
	if !r.roundTimer.Live(gen) {
		return
	}
	r.roundTimer.Disarm()
	if r.phase != PhasePlaying {
		return
	}
	r.interRound()
}

// interRound fires exactly once per round no matter how many triggers
// race for it.
func (r *Room) interRound() {
	if r.advancing {
		return
	}
	r.advancing = true
	r.roundTimer.Disarm()
	r.broadcast(protocol.Envelope{
		Type: protocol.MsgBattleCountdown,
		Payload: protocol.BattleCountdown{
			Seconds:   int(r.cfg.Countdown / time.Second),
			NextRound: r.round + 1,
		},
	})
	r.countdownTimer.Arm(r.cfg.Countdown, func(gen int) {
		r.Post(countdownFired{gen: gen})
	})
}

func (r *Room) handleCountdown(gen int) {
	if !r.countdownTimer.Live(gen) {
		return
	}
	r.countdownTimer.Disarm()
	if r.phase != PhasePlaying {
		return
	}
	r.advancing = false
	r.advanceRound()
}

func (r *Room) end() {
	r.phase = PhaseOver
	r.advancing = false
	r.roundTimer.Disarm()
	r.countdownTimer.Disarm()
	r.readyTimer.Disarm()

	standings := r.playerList()
	// Best score first; equal scores keep join order.
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	r.broadcast(protocol.Envelope{
		Type:    protocol.MsgBattleOver,
		Payload: protocol.BattleOver{Standings: standings},
	})
	r.log.Info("battle over")
}

func (r *Room) handleDisconnect(id string) {
	p := r.find(id)
	if p == nil {
		return
	}
	// The all-claimed count tracks present players only; outside a
	// running round it is about to be reset anyway.
	if r.phase == PhasePlaying && !r.advancing && p.found {
		r.foundCount--
	}
	r.removePlayer(id)
	r.log.Info("player left", zap.String("player", id))

	if len(r.players) == 0 {
		r.readyTimer.Disarm()
		r.roundTimer.Disarm()
		r.countdownTimer.Disarm()
		r.armTeardown()
		return
	}

	// Unlike duel there is no walkover: the game keeps going for
	// whoever is left, and the round runs its own course.
	r.broadcast(protocol.Envelope{
		Type:    protocol.MsgPlayerLeft,
		Payload: protocol.BattlePlayerLeft{ID: id, Players: r.playerList()},
	})

	// When the last player still searching is the one who left,
	// everyone remaining has claimed and the round is done.
	if r.phase == PhasePlaying && !r.advancing && r.foundCount >= len(r.players) {
		r.interRound()
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
	p := &playerState{id: conn.ID(), name: name, conn: conn}
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

func (r *Room) playerList() []protocol.BattlePlayer {
	list := make([]protocol.BattlePlayer, 0, len(r.players))
	for _, p := range r.players {
		list = append(list, protocol.BattlePlayer{
			ID:    p.id,
			Name:  p.name,
			Score: p.score,
			Ready: p.ready,
			Found: p.found,
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
