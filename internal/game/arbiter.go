// Package game arbitrates the buzzer and the host-only scoring actions of a room.
//
// Callers hold the room's lock (rooms.Room.Exec) around every mutating call so
// that buzzes, resets and score changes on one room are applied in a single order.
package game

import (
	"time"

	"quizbuzzer/internal/gameerr"
	"quizbuzzer/internal/players"
	"quizbuzzer/internal/rooms"
)

// BuzzEvent describes a won buzz.
type BuzzEvent struct {
	PlayerID  string    `json:"playerId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

type Arbiter struct {
	now func() time.Time
}

func NewArbiter() *Arbiter {
	return &Arbiter{now: time.Now}
}

// Buzz locks the room's buzzer for playerID. A locked buzzer is reported
// before an unknown player.
func (a *Arbiter) Buzz(r *rooms.Room, playerID string) (BuzzEvent, error) {
	if r.Buzzer.Locked() {
		return BuzzEvent{}, gameerr.New(gameerr.BuzzerLocked, "Buzzer is already locked")
	}
	p, err := r.Players.GetOrFail(playerID)
	if err != nil {
		return BuzzEvent{}, err
	}

	at := a.now()
	if !r.Buzzer.TryLock(p.ID, at) {
		return BuzzEvent{}, gameerr.New(gameerr.BuzzerLocked, "Buzzer is already locked")
	}
	return BuzzEvent{PlayerID: p.ID, Username: p.Name, Timestamp: at}, nil
}

// Reset unlocks the buzzer. Only the host may reset; resetting an unlocked
// buzzer succeeds.
func (a *Arbiter) Reset(r *rooms.Room, requesterID string) error {
	if !a.IsHost(r, requesterID) {
		return gameerr.New(gameerr.Unauthorized, "Only the host can reset the buzzer")
	}
	r.Buzzer.Reset()
	return nil
}

// UpdateScore adds points to the target's score on behalf of the host.
// The buzzer is left as is.
func (a *Arbiter) UpdateScore(r *rooms.Room, requesterID, targetID string, points int) (*players.Player, error) {
	if !a.IsHost(r, requesterID) {
		return nil, gameerr.New(gameerr.Unauthorized, "Only the host can update scores")
	}
	return r.Players.ApplyScoreDelta(targetID, points)
}

func (a *Arbiter) IsLocked(r *rooms.Room) bool {
	return r.Buzzer.Locked()
}

// LockedBy returns the current holder's id, if the buzzer is locked.
func (a *Arbiter) LockedBy(r *rooms.Room) (string, bool) {
	l, ok := r.Buzzer.Holder()
	return l.HolderID, ok
}

func (a *Arbiter) IsHost(r *rooms.Room, playerID string) bool {
	return playerID != "" && r.HostID == playerID
}
