package players

import (
	"slices"
	"sync"
	"time"

	"quizbuzzer/internal/gameerr"

	"github.com/google/uuid"
)

// Store is the membership set of a single room. Iteration follows join order.
type Store struct {
	mu      sync.Mutex
	roomID  string
	players map[string]*Player
	order   []string
	now     func() time.Time
}

func NewStore(roomID string) *Store {
	return &Store{
		roomID:  roomID,
		players: make(map[string]*Player),
		now:     time.Now,
	}
}

// Add creates a connected player with a fresh id and a zero score.
func (s *Store) Add(name string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	player := &Player{
		ID:        uuid.NewString(),
		Name:      name,
		Connected: true,
		RoomID:    s.roomID,
		JoinedAt:  s.now(),
	}
	s.players[player.ID] = player
	s.order = append(s.order, player.ID)
	return player
}

func (s *Store) Get(id string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[id]
}

func (s *Store) GetOrFail(id string) (*Player, error) {
	if p := s.Get(id); p != nil {
		return p, nil
	}
	return nil, gameerr.Newf(gameerr.PlayerNotFound, "Player %s not found", id)
}

// Remove reports whether a player was present and removed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[id]; !ok {
		return false
	}
	delete(s.players, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

// ApplyScoreDelta adds delta to the player's score. Scores are unbounded in
// both directions.
func (s *Store) ApplyScoreDelta(id string, delta int) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil, gameerr.Newf(gameerr.PlayerNotFound, "Player %s not found", id)
	}
	p.Score += delta
	return p, nil
}

// Public returns the wire projection of every member in join order.
func (s *Store) Public() []Public {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]Public, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.players[id].Public())
	}
	return list
}

// Oldest returns the earliest-joined member still present.
func (s *Store) Oldest() (*Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return nil, false
	}
	return s.players[s.order[0]], true
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

func (s *Store) ConnectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.players {
		if p.Connected {
			n++
		}
	}
	return n
}
