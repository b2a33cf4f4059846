// Package protocol defines the JSON wire format spoken over the
// websocket. Client messages are a single flat struct keyed by type;
// server messages are an envelope with a typed payload.
package protocol

type MessageType string

const (
	// Client -> Server
	MsgCoopCreate   MessageType = "coopCreate"
	MsgCoopJoin     MessageType = "coopJoin"
	MsgCoopClaim    MessageType = "coopClaim"
	MsgDuelCreate   MessageType = "duelCreate"
	MsgDuelJoin     MessageType = "duelJoin"
	MsgDuelOptions  MessageType = "duelOptions"
	MsgDuelReady    MessageType = "duelReady"
	MsgDuelClaim    MessageType = "duelClaim"
	MsgDuelRejoin   MessageType = "duelRejoin"
	MsgBattleCreate MessageType = "battleCreate"
	MsgBattleJoin   MessageType = "battleJoin"
	MsgBattleReady  MessageType = "battleReady"
	MsgBattleClaim  MessageType = "battleClaim"

	// Server -> Client acks
	MsgAck   MessageType = "ack"
	MsgError MessageType = "error"

	// Server -> Client broadcasts
	MsgPlayerJoined     MessageType = "playerJoined"
	MsgPlayerLeft       MessageType = "playerLeft"
	MsgChampFound       MessageType = "champFound"
	MsgDuelReadyState   MessageType = "duelReadyState"
	MsgDuelOptionsSet   MessageType = "duelOptionsSet"
	MsgDuelStart        MessageType = "duelStart"
	MsgDuelClaimed      MessageType = "duelClaimed"
	MsgDuelAttacked     MessageType = "duelAttacked"
	MsgDuelRestart      MessageType = "duelRestart"
	MsgDuelOver         MessageType = "duelOver"
	MsgBattleReadyState MessageType = "battleReadyState"
	MsgBattleStart      MessageType = "battleStart"
	MsgBattleRound      MessageType = "battleRound"
	MsgBattleClaimed    MessageType = "battleClaimed"
	MsgBattleCountdown  MessageType = "battleCountdown"
	MsgBattleOver       MessageType = "battleOver"
)

// ClientMessage is every inbound frame. Fields not used by a given type
// are simply absent.
type ClientMessage struct {
	Type         MessageType  `json:"type"`
	ID           int64        `json:"id,omitempty"` // client-chosen ack correlation
	Name         string       `json:"name,omitempty"`
	Code         string       `json:"code,omitempty"`
	ChampionID   string       `json:"champion_id,omitempty"`
	ChampionName string       `json:"champion_name,omitempty"`
	Options      *DuelOptions `json:"options,omitempty"`
}

// Envelope is the top-level outbound frame. ID echoes the client's
// correlation id on acks and is zero on broadcasts.
type Envelope struct {
	Type    MessageType `json:"type"`
	ID      int64       `json:"id,omitempty"`
	Payload any         `json:"payload,omitempty"`
}

// DuelOptions are the duel game parameters. Each field is clamped
// server-side; zero values mean "use the default".
type DuelOptions struct {
	DurationMin     int  `json:"duration_min"`
	ChampionTarget  int  `json:"champion_target"`
	AttackMode      bool `json:"attack_mode"`
	AttackThreshold int  `json:"attack_threshold"`
}

// ClaimEvent records the first claim of a champion in a coop room.
type ClaimEvent struct {
	ChampionID   string `json:"champion_id"`
	ChampionName string `json:"champion_name"`
	PlayerID     string `json:"player_id"`
	PlayerName   string `json:"player_name"`
	TS           int64  `json:"ts"`
}

type CoopPlayer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type DuelPlayer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Found  int    `json:"found"`
	Streak int    `json:"streak"`
	Ready  bool   `json:"ready"`
}

type BattlePlayer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Ready bool   `json:"ready"`
	Found bool   `json:"found"` // claimed this round
}

// --- Ack payloads ---

// ErrorAck is the shared failure shape for request/response events.
type ErrorAck struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error"`
}

type CoopCreateAck struct {
	Ok        bool   `json:"ok"`
	Code      string `json:"code"`
	StartTime int64  `json:"start_time"`
}

type CoopJoinAck struct {
	Ok        bool         `json:"ok"`
	Code      string       `json:"code"`
	StartTime int64        `json:"start_time"`
	Found     []ClaimEvent `json:"found"`
	Players   []CoopPlayer `json:"players"`
}

type DuelCreateAck struct {
	Ok   bool   `json:"ok"`
	Code string `json:"code"`
}

type DuelJoinAck struct {
	Ok      bool         `json:"ok"`
	Code    string       `json:"code"`
	Players []DuelPlayer `json:"players"`
	Options DuelOptions  `json:"options"`
}

type BattleCreateAck struct {
	Ok   bool   `json:"ok"`
	Code string `json:"code"`
}

type BattleJoinAck struct {
	Ok      bool           `json:"ok"`
	Code    string         `json:"code"`
	Players []BattlePlayer `json:"players"`
	Phase   string         `json:"phase"`
	Round   int            `json:"round"`
}

// --- Broadcast payloads ---

type CoopPlayerJoined struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Players []CoopPlayer `json:"players"`
}

type CoopPlayerLeft struct {
	ID      string       `json:"id"`
	Players []CoopPlayer `json:"players"`
}

// ChampFound is the coop claim broadcast: the claim event plus the
// updated standings, claimer included.
type ChampFound struct {
	ClaimEvent
	Players []CoopPlayer `json:"players"`
}

type DuelPlayerJoined struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Players []DuelPlayer `json:"players"`
}

type DuelPlayerLeft struct {
	ID      string       `json:"id"`
	Players []DuelPlayer `json:"players"`
}

type DuelReadyState struct {
	Players []DuelPlayer `json:"players"`
}

type DuelOptionsSet struct {
	Options DuelOptions `json:"options"`
}

type DuelStart struct {
	Options DuelOptions `json:"options"`
}

type DuelClaimed struct {
	PlayerID   string       `json:"player_id"`
	ChampionID string       `json:"champion_id"`
	Players    []DuelPlayer `json:"players"`
}

// DuelAttacked names the attacker, the victim and the champion revoked
// from the victim's claimed set.
type DuelAttacked struct {
	AttackerID string       `json:"attacker_id"`
	TargetID   string       `json:"target_id"`
	ChampionID string       `json:"champion_id"`
	Players    []DuelPlayer `json:"players"`
}

type DuelRestart struct {
	Players []DuelPlayer `json:"players"`
}

// DuelOver ends a duel. WinnerID is empty when nobody won (exact tie at
// the time limit).
type DuelOver struct {
	WinnerID string       `json:"winner_id"`
	Reason   string       `json:"reason"` // "target" | "timeout" | "walkover"
	Players  []DuelPlayer `json:"players"`
}

type BattlePlayerJoined struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Players []BattlePlayer `json:"players"`
}

type BattlePlayerLeft struct {
	ID      string         `json:"id"`
	Players []BattlePlayer `json:"players"`
}

type BattleReadyState struct {
	Players []BattlePlayer `json:"players"`
}

type BattleStart struct {
	Rounds int `json:"rounds"`
}

type BattleRound struct {
	Round    int            `json:"round"`
	Rounds   int            `json:"rounds"`
	Duration int            `json:"duration"` // seconds
	Players  []BattlePlayer `json:"players"`
}

type BattleClaimed struct {
	PlayerID   string         `json:"player_id"`
	ChampionID string         `json:"champion_id"`
	Players    []BattlePlayer `json:"players"`
}

type BattleCountdown struct {
	Seconds   int `json:"seconds"`
	NextRound int `json:"next_round"`
}

// BattleOver carries the final standings, best score first.
type BattleOver struct {
	Standings []BattlePlayer `json:"standings"`
}
