package rooms

import (
	"sync"
	"sync/atomic"
	"time"

	"quizbuzzer/internal/buzzer"
	"quizbuzzer/internal/gameerr"
	"quizbuzzer/internal/players"
)

// Capacity is an optional member limit. The zero value is unlimited.
type Capacity struct {
	max int
}

func Unlimited() Capacity { return Capacity{} }

func Limit(n int) Capacity { return Capacity{max: n} }

// CapacityOf converts an optional wire value.
func CapacityOf(n *int) Capacity {
	if n == nil {
		return Unlimited()
	}
	return Limit(*n)
}

func (c Capacity) Max() (int, bool) {
	return c.max, c.max > 0
}

type Room struct {
	ID        string
	Code      string
	HostID    string
	Players   *players.Store
	Buzzer    buzzer.State
	CreatedAt time.Time
	Capacity  Capacity

	mu     sync.Mutex
	closed atomic.Bool
}

// Exec runs fn while holding the room's lock. Every read-modify-write of
// HostID, Players or Buzzer goes through Exec. It fails with ROOM_NOT_FOUND
// once the room has been deleted from its Store.
func (r *Room) Exec(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return gameerr.Newf(gameerr.RoomNotFound, "Room with code %s not found", r.Code)
	}
	return fn()
}

// Closed reports whether the room has been deleted.
func (r *Room) Closed() bool {
	return r.closed.Load()
}

func (r *Room) CanJoin() bool {
	max, ok := r.Capacity.Max()
	return !ok || r.Players.Count() < max
}

type Summary struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	PlayerCount    int       `json:"playerCount"`
	ConnectedCount int       `json:"connectedCount"`
	MaxPlayers     *int      `json:"maxPlayers,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Summary is an unlocked snapshot for listings.
func (r *Room) Summary() Summary {
	s := Summary{
		ID:             r.ID,
		Code:           r.Code,
		PlayerCount:    r.Players.Count(),
		ConnectedCount: r.Players.ConnectedCount(),
		CreatedAt:      r.CreatedAt,
	}
	if max, ok := r.Capacity.Max(); ok {
		s.MaxPlayers = &max
	}
	return s
}
