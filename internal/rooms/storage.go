package rooms

import (
	"context"
	"slices"
	"sync"
	"time"

	"quizbuzzer/internal/gameerr"
	"quizbuzzer/internal/players"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxAttempts = 10

// Store indexes live rooms by id and by join code. Both indices change
// together under mu.
type Store struct {
	mu       sync.Mutex
	byID     map[string]*Room
	byCode   map[string]*Room
	onDelete []func(*Room)

	log         *zap.Logger
	generate    func() (string, error)
	maxAttempts int
	now         func() time.Time
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithCodeGenerator replaces the random join code source.
func WithCodeGenerator(fn func() (string, error)) Option {
	return func(s *Store) { s.generate = fn }
}

func WithMaxAttempts(n int) Option {
	return func(s *Store) { s.maxAttempts = n }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		byID:        make(map[string]*Room),
		byCode:      make(map[string]*Room),
		log:         zap.NewNop(),
		generate:    GenerateCode,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnDelete registers fn to run after a room leaves the indices. Hooks may run
// while the caller holds the room's lock and must not call Room.Exec.
func (s *Store) OnDelete(fn func(*Room)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = append(s.onDelete, fn)
}

// Create registers a new room with hostName as its first member and host.
// It fails with CODE_GENERATION_EXHAUSTED when no free code is found within
// the attempt ceiling.
func (s *Store) Create(hostName string, capacity Capacity) (*Room, *players.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.uniqueCode()
	if err != nil {
		return nil, nil, err
	}

	id := uuid.NewString()
	room := &Room{
		ID:        id,
		Code:      code,
		Players:   players.NewStore(id),
		CreatedAt: s.now(),
		Capacity:  capacity,
	}
	host := room.Players.Add(hostName)
	room.HostID = host.ID

	s.byID[room.ID] = room
	s.byCode[room.Code] = room
	s.log.Info("room created", zap.String("room", room.ID), zap.String("code", room.Code))
	return room, host, nil
}

func (s *Store) uniqueCode() (string, error) {
	for range s.maxAttempts {
		code, err := s.generate()
		if err != nil {
			return "", gameerr.Wrap(gameerr.Internal, "generating room code", err)
		}
		code = NormalizeCode(code)
		if _, exists := s.byCode[code]; !exists {
			return code, nil
		}
	}
	s.log.Error("room code space exhausted",
		zap.Int("attempts", s.maxAttempts),
		zap.Int("live_rooms", len(s.byID)))
	return "", gameerr.Newf(gameerr.CodeGenerationExhausted,
		"failed to generate unique room code after %d attempts", s.maxAttempts)
}

func (s *Store) GetByID(id string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	return r, ok
}

// GetByCode looks a room up by join code, ignoring case and surrounding space.
func (s *Store) GetByCode(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byCode[NormalizeCode(code)]
	return r, ok
}

func (s *Store) CanJoin(r *Room) bool {
	return r.CanJoin()
}

// Delete removes the room from both indices and marks it closed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	r, ok := s.byID[id]
	if ok {
		delete(s.byID, id)
		delete(s.byCode, r.Code)
		r.closed.Store(true)
	}
	hooks := slices.Clone(s.onDelete)
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.log.Info("room deleted", zap.String("room", r.ID), zap.String("code", r.Code))
	for _, fn := range hooks {
		fn(r)
	}
	return true
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Store) List() []*Room {
	s.mu.Lock()
	list := make([]*Room, 0, len(s.byID))
	for _, r := range s.byID {
		list = append(list, r)
	}
	s.mu.Unlock()

	slices.SortFunc(list, func(a, b *Room) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return list
}

// ListSummaries is a relaxed snapshot, oldest room first.
func (s *Store) ListSummaries() []Summary {
	list := s.List()
	out := make([]Summary, 0, len(list))
	for _, r := range list {
		out = append(out, r.Summary())
	}
	return out
}

// SweepEmpty deletes every room with no members and returns how many went.
func (s *Store) SweepEmpty() int {
	n := 0
	for _, r := range s.List() {
		_ = r.Exec(func() error {
			if r.Players.Count() == 0 && s.Delete(r.ID) {
				n++
			}
			return nil
		})
	}
	return n
}

// Sweep runs SweepEmpty every interval until ctx is done.
func (s *Store) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.SweepEmpty(); n > 0 {
				s.log.Info("swept empty rooms", zap.Int("count", n))
			}
		}
	}
}
