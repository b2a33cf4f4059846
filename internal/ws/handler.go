// Package ws is the event boundary: it upgrades connections, decodes
// inbound frames, validates them against the session, and routes them
// to the right mode engine. Replies come back over the session outbox
// as acks; everything a room broadcasts travels the same channel.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/champsdual-dev/champsdual/internal/battle"
	"github.com/champsdual-dev/champsdual/internal/config"
	"github.com/champsdual-dev/champsdual/internal/coop"
	"github.com/champsdual-dev/champsdual/internal/duel"
	"github.com/champsdual-dev/champsdual/internal/hub"
	"github.com/champsdual-dev/champsdual/internal/protocol"
	"github.com/champsdual-dev/champsdual/internal/session"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type Dispatcher struct {
	ctx    context.Context
	cfg    *config.Config
	coop   *hub.Hub[*coop.Room]
	duel   *hub.Hub[*duel.Room]
	battle *hub.Hub[*battle.Room]
	log    *zap.Logger
}

func NewDispatcher(ctx context.Context, cfg *config.Config, coopHub *hub.Hub[*coop.Room], duelHub *hub.Hub[*duel.Room], battleHub *hub.Hub[*battle.Room], log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		ctx:    ctx,
		cfg:    cfg,
		coop:   coopHub,
		duel:   duelHub,
		battle: battleHub,
		log:    log,
	}
}

func (d *Dispatcher) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		sess := session.New()
		defer d.disconnect(sess)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer: drain the session outbox onto the wire.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case env := <-sess.Out():
					payload, err := json.Marshal(env)
					if err != nil {
						continue
					}
					wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
					_ = conn.Write(wctx, websocket.MessageText, payload)
					wcancel()
				}
			}
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				// Clean close or dead peer; either way the deferred
				// disconnect tells the rooms.
				return
			}

			var cm protocol.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				sess.Send(protocol.Envelope{
					Type:    protocol.MsgError,
					Payload: protocol.ErrorAck{Error: "bad json"},
				})
				continue
			}
			d.dispatch(sess, cm)
		}
	}
}

func (d *Dispatcher) dispatch(sess *session.Session, m protocol.ClientMessage) {
	switch m.Type {
	case protocol.MsgCoopCreate:
		d.coopCreate(sess, m)
	case protocol.MsgCoopJoin:
		d.coopJoin(sess, m)
	case protocol.MsgCoopClaim:
		if room, ok := d.coopRoom(sess); ok {
			room.Post(coop.Claim{
				PlayerID:     sess.ID(),
				ChampionID:   m.ChampionID,
				ChampionName: m.ChampionName,
			})
		}
	case protocol.MsgDuelCreate:
		d.duelCreate(sess, m)
	case protocol.MsgDuelJoin:
		d.duelJoin(sess, m)
	case protocol.MsgDuelOptions:
		if room, ok := d.duelRoom(sess); ok {
			room.Post(duel.SetOptions{PlayerID: sess.ID(), Options: m.Options})
		}
	case protocol.MsgDuelReady:
		if room, ok := d.duelRoom(sess); ok {
			room.Post(duel.Ready{PlayerID: sess.ID()})
		}
	case protocol.MsgDuelClaim:
		if room, ok := d.duelRoom(sess); ok {
			room.Post(duel.Claim{PlayerID: sess.ID(), ChampionID: m.ChampionID})
		}
	case protocol.MsgDuelRejoin:
		d.duelRejoin(sess, m)
	case protocol.MsgBattleCreate:
		d.battleCreate(sess, m)
	case protocol.MsgBattleJoin:
		d.battleJoin(sess, m)
	case protocol.MsgBattleReady:
		if room, ok := d.battleRoom(sess); ok {
			room.Post(battle.Ready{PlayerID: sess.ID()})
		}
	case protocol.MsgBattleClaim:
		if room, ok := d.battleRoom(sess); ok {
			room.Post(battle.Claim{PlayerID: sess.ID(), ChampionID: m.ChampionID})
		}
	default:
		sess.Send(protocol.Envelope{
			Type:    protocol.MsgError,
			ID:      m.ID,
			Payload: protocol.ErrorAck{Error: "unknown type"},
		})
	}
}

// --- coop ---

func (d *Dispatcher) coopCreate(sess *session.Session, m protocol.ClientMessage) {
	if sess.CoopRoom != "" {
		d.fail(sess, m.ID, "already in a room")
		return
	}
	sess.SetName(m.Name)

	var room *coop.Room
	code, ok := d.coop.Create(func(code string) *coop.Room {
		room = coop.New(d.ctx, code, d.cfg.Game.GraceWindow(), d.coop, d.log, sess, sess.Name())
		return room
	})
	if !ok {
		d.fail(sess, m.ID, "server shutting down")
		return
	}
	sess.CoopRoom = code

	d.ack(sess, m.ID, protocol.CoopCreateAck{Ok: true, Code: code, StartTime: room.StartTime()})
}

func (d *Dispatcher) coopJoin(sess *session.Session, m protocol.ClientMessage) {
	if sess.CoopRoom != "" {
		d.fail(sess, m.ID, "already in a room")
		return
	}
	sess.SetName(m.Name)

	room, ok := d.coop.Get(m.Code)
	if !ok {
		d.fail(sess, m.ID, "room not found")
		return
	}
	reply := make(chan coop.JoinResult, 1)
	if !room.Post(coop.Join{Conn: sess, Name: sess.Name(), Reply: reply}) {
		d.fail(sess, m.ID, "room not found")
		return
	}
	select {
	case res := <-reply:
		sess.CoopRoom = m.Code
		d.ack(sess, m.ID, protocol.CoopJoinAck{
			Ok:        true,
			Code:      m.Code,
			StartTime: res.StartTime,
			Found:     res.Found,
			Players:   res.Players,
		})
	case <-room.Done():
		d.fail(sess, m.ID, "room not found")
	}
}

func (d *Dispatcher) coopRoom(sess *session.Session) (*coop.Room, bool) {
	if sess.CoopRoom == "" {
		return nil, false
	}
	return d.coop.Get(sess.CoopRoom)
}

// --- duel ---

func (d *Dispatcher) duelCreate(sess *session.Session, m protocol.ClientMessage) {
	if sess.DuelRoom != "" {
		d.fail(sess, m.ID, "already in a room")
		return
	}
	sess.SetName(m.Name)

	cfg := duel.Config{
		ReadyTimeout: d.cfg.Game.ReadyTimeout(),
		Grace:        d.cfg.Game.GraceWindow(),
	}
	code, ok := d.duel.Create(func(code string) *duel.Room {
		return duel.New(d.ctx, code, cfg, d.duel, d.log, sess, sess.Name(), m.Options)
	})
	if !ok {
		d.fail(sess, m.ID, "server shutting down")
		return
	}
	sess.DuelRoom = code

	d.ack(sess, m.ID, protocol.DuelCreateAck{Ok: true, Code: code})
}

func (d *Dispatcher) duelJoin(sess *session.Session, m protocol.ClientMessage) {
	if sess.DuelRoom != "" {
		d.fail(sess, m.ID, "already in a room")
		return
	}
	sess.SetName(m.Name)

	room, ok := d.duel.Get(m.Code)
	if !ok {
		d.fail(sess, m.ID, "room not found")
		return
	}
	reply := make(chan duel.JoinResult, 1)
	if !room.Post(duel.Join{Conn: sess, Name: sess.Name(), Reply: reply}) {
		d.fail(sess, m.ID, "room not found")
		return
	}
	select {
	case res := <-reply:
		if res.Err != nil {
			d.fail(sess, m.ID, res.Err.Error())
			return
		}
		sess.DuelRoom = m.Code
		d.ack(sess, m.ID, protocol.DuelJoinAck{
			Ok:      true,
			Code:    m.Code,
			Players: res.Players,
			Options: res.Options,
		})
	case <-room.Done():
		d.fail(sess, m.ID, "room not found")
	}
}

func (d *Dispatcher) duelRejoin(sess *session.Session, m protocol.ClientMessage) {
	code := m.Code
	if code == "" {
		code = sess.DuelRoom
	}
	if code == "" {
		return
	}
	if room, ok := d.duel.Get(code); ok {
		room.Post(duel.Rejoin{PlayerID: sess.ID()})
	}
}

func (d *Dispatcher) duelRoom(sess *session.Session) (*duel.Room, bool) {
	if sess.DuelRoom == "" {
		return nil, false
	}
	return d.duel.Get(sess.DuelRoom)
}

// --- battle ---

func (d *Dispatcher) battleCreate(sess *session.Session, m protocol.ClientMessage) {
	if sess.BattleRoom != "" {
		d.fail(sess, m.ID, "already in a room")
		return
	}
	sess.SetName(m.Name)

	cfg := battle.Config{
		Rounds:        d.cfg.Battle.Rounds,
		RoundDuration: d.cfg.Battle.RoundDuration(),
		Countdown:     d.cfg.Battle.Countdown(),
		ReadyTimeout:  d.cfg.Game.ReadyTimeout(),
		Grace:         d.cfg.Game.GraceWindow(),
	}
	code, ok := d.battle.Create(func(code string) *battle.Room {
		return battle.New(d.ctx, code, cfg, d.battle, d.log, sess, sess.Name())
	})
	if !ok {
		d.fail(sess, m.ID, "server shutting down")
		return
	}
	sess.BattleRoom = code

	d.ack(sess, m.ID, protocol.BattleCreateAck{Ok: true, Code: code})
}

func (d *Dispatcher) battleJoin(sess *session.Session, m protocol.ClientMessage) {
	if sess.BattleRoom != "" {
		d.fail(sess, m.ID, "already in a room")
		return
	}
	sess.SetName(m.Name)

	room, ok := d.battle.Get(m.Code)
	if !ok {
		d.fail(sess, m.ID, "room not found")
		return
	}
	reply := make(chan battle.JoinResult, 1)
	if !room.Post(battle.Join{Conn: sess, Name: sess.Name(), Reply: reply}) {
		d.fail(sess, m.ID, "room not found")
		return
	}
	select {
	case res := <-reply:
		if res.Err != nil {
			d.fail(sess, m.ID, res.Err.Error())
			return
		}
		sess.BattleRoom = m.Code
		d.ack(sess, m.ID, protocol.BattleJoinAck{
			Ok:      true,
			Code:    m.Code,
			Players: res.Players,
			Phase:   string(res.Phase),
			Round:   res.Round,
		})
	case <-room.Done():
		d.fail(sess, m.ID, "room not found")
	}
}

func (d *Dispatcher) battleRoom(sess *session.Session) (*battle.Room, bool) {
	if sess.BattleRoom == "" {
		return nil, false
	}
	return d.battle.Get(sess.BattleRoom)
}

// disconnect tells every room this session was in that the player is
// gone. Rooms treat an unknown player as a no-op, so a late message is
// harmless.
func (d *Dispatcher) disconnect(sess *session.Session) {
	if room, ok := d.coopRoom(sess); ok {
		room.Post(coop.Disconnect{PlayerID: sess.ID()})
	}
	if room, ok := d.duelRoom(sess); ok {
		room.Post(duel.Disconnect{PlayerID: sess.ID()})
	}
	if room, ok := d.battleRoom(sess); ok {
		room.Post(battle.Disconnect{PlayerID: sess.ID()})
	}
}

func (d *Dispatcher) ack(sess *session.Session, id int64, payload any) {
	sess.Send(protocol.Envelope{Type: protocol.MsgAck, ID: id, Payload: payload})
}

func (d *Dispatcher) fail(sess *session.Session, id int64, reason string) {
	sess.Send(protocol.Envelope{
		Type:    protocol.MsgAck,
		ID:      id,
		Payload: protocol.ErrorAck{Error: reason},
	})
}
