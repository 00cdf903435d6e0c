package gateway

import (
	"time"

	"quizbuzzer/internal/gameerr"
	"quizbuzzer/internal/players"
)

// Commands accepted from clients.
const (
	CmdCreateRoom  = "create-room"
	CmdJoinRoom    = "join-room"
	CmdBuzz        = "buzz"
	CmdResetBuzzer = "reset-buzzer"
	CmdUpdateScore = "update-score"
	CmdLeaveRoom   = "leave-room"
)

// Notifications sent to clients.
const (
	EvtAck               = "ack"
	EvtError             = "error"
	EvtPlayerListUpdated = "player-list-updated"
	EvtPlayerJoined      = "player-joined"
	EvtPlayerLeft        = "player-left"
	EvtPlayerBuzzed      = "player-buzzed"
	EvtBuzzerReset       = "buzzer-reset"
	EvtScoreUpdated      = "score-updated"
)

// TimestampLayout is RFC 3339 with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type createRoomPayload struct {
	Username   string `json:"username" validate:"required,min=1,max=50"`
	MaxPlayers *int   `json:"maxPlayers" validate:"omitempty,min=2,max=20"`
}

type joinRoomPayload struct {
	RoomCode string `json:"roomCode" validate:"required,min=1"`
	Username string `json:"username" validate:"required,min=1,max=50"`
}

type updateScorePayload struct {
	PlayerID *string `json:"playerId" validate:"required"`
	Points   *int    `json:"points" validate:"required"`
}

// Ack answers create-room, join-room and buzz.
type Ack struct {
	Success  bool         `json:"success"`
	RoomID   string       `json:"roomId,omitempty"`
	RoomCode string       `json:"roomCode,omitempty"`
	PlayerID string       `json:"playerId,omitempty"`
	Error    string       `json:"error,omitempty"`
	Code     gameerr.Code `json:"code,omitempty"`
	Field    string       `json:"field,omitempty"`
}

// ErrorNotice reports a failed fire-and-forget command to its sender.
type ErrorNotice struct {
	Message string       `json:"message"`
	Code    gameerr.Code `json:"code"`
	Field   string       `json:"field,omitempty"`
}

type PlayerList struct {
	Players []players.Public `json:"players"`
	HostID  string           `json:"hostId"`
}

type PlayerJoined struct {
	Player players.Public `json:"player"`
}

type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

type PlayerBuzzed struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

type ScoreUpdated struct {
	PlayerID string `json:"playerId"`
	NewScore int    `json:"newScore"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
