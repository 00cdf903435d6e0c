package game

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"quizbuzzer/internal/gameerr"
	"quizbuzzer/internal/rooms"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newRoom(t *testing.T) (*rooms.Room, string) {
	t.Helper()
	room, host, err := rooms.NewStore().Create("Host", rooms.Unlimited())
	require.NoError(t, err)
	return room, host.ID
}

func TestArbiter_Buzz(t *testing.T) {
	room, _ := newRoom(t)
	alice := room.Players.Add("Alice")
	bob := room.Players.Add("Bob")

	at := time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC)
	a := &Arbiter{now: func() time.Time { return at }}

	ev, err := a.Buzz(room, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, BuzzEvent{PlayerID: alice.ID, Username: "Alice", Timestamp: at}, ev)

	_, err = a.Buzz(room, bob.ID)
	assert.True(t, gameerr.Is(err, gameerr.BuzzerLocked))

	holder, ok := a.LockedBy(room)
	require.True(t, ok)
	assert.Equal(t, alice.ID, holder)
}

func TestArbiter_BuzzUnknownPlayer(t *testing.T) {
	room, _ := newRoom(t)
	a := NewArbiter()

	_, err := a.Buzz(room, "ghost")
	assert.True(t, gameerr.Is(err, gameerr.PlayerNotFound))
	assert.False(t, a.IsLocked(room))
}

func TestArbiter_BuzzLockedBeforeUnknown(t *testing.T) {
	room, hostID := newRoom(t)
	a := NewArbiter()

	_, err := a.Buzz(room, hostID)
	require.NoError(t, err)

	_, err = a.Buzz(room, "ghost")
	assert.True(t, gameerr.Is(err, gameerr.BuzzerLocked))
}

func TestArbiter_Reset(t *testing.T) {
	room, hostID := newRoom(t)
	alice := room.Players.Add("Alice")
	a := NewArbiter()

	_, err := a.Buzz(room, alice.ID)
	require.NoError(t, err)

	err = a.Reset(room, alice.ID)
	assert.True(t, gameerr.Is(err, gameerr.Unauthorized))
	assert.True(t, a.IsLocked(room))

	require.NoError(t, a.Reset(room, hostID))
	assert.False(t, a.IsLocked(room))
	_, ok := a.LockedBy(room)
	assert.False(t, ok)

	require.NoError(t, a.Reset(room, hostID))
	require.NoError(t, a.Reset(room, hostID))
	assert.False(t, a.IsLocked(room))
}

func TestArbiter_UpdateScore(t *testing.T) {
	room, hostID := newRoom(t)
	alice := room.Players.Add("Alice")
	a := NewArbiter()

	p, err := a.UpdateScore(room, hostID, alice.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Score)

	p, err = a.UpdateScore(room, hostID, alice.ID, -15)
	require.NoError(t, err)
	assert.Equal(t, -5, p.Score)

	_, err = a.UpdateScore(room, alice.ID, alice.ID, 100)
	assert.True(t, gameerr.Is(err, gameerr.Unauthorized))
	assert.Equal(t, -5, room.Players.Get(alice.ID).Score)

	_, err = a.UpdateScore(room, hostID, "ghost", 1)
	assert.True(t, gameerr.Is(err, gameerr.PlayerNotFound))
}

func TestArbiter_UpdateScoreLeavesBuzzer(t *testing.T) {
	room, hostID := newRoom(t)
	alice := room.Players.Add("Alice")
	a := NewArbiter()

	_, err := a.Buzz(room, alice.ID)
	require.NoError(t, err)
	_, err = a.UpdateScore(room, hostID, alice.ID, 5)
	require.NoError(t, err)

	holder, ok := a.LockedBy(room)
	require.True(t, ok)
	assert.Equal(t, alice.ID, holder)
}

func TestArbiter_IsHost(t *testing.T) {
	room, hostID := newRoom(t)
	a := NewArbiter()
	assert.True(t, a.IsHost(room, hostID))
	assert.False(t, a.IsHost(room, "someone-else"))
	assert.False(t, a.IsHost(room, ""))
}

func TestArbiter_ConcurrentBuzzSingleWinner(t *testing.T) {
	room, _ := newRoom(t)
	a := NewArbiter()

	ids := make([]string, 32)
	for i := range ids {
		ids[i] = room.Players.Add(fmt.Sprintf("p%d", i)).ID
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		locked  int
	)
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			err := room.Exec(func() error {
				_, err := a.Buzz(room, id)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, id)
			} else if gameerr.Is(err, gameerr.BuzzerLocked) {
				locked++
			}
		}(id)
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, len(ids)-1, locked)
	holder, _ := a.LockedBy(room)
	assert.Equal(t, winners[0], holder)
}

func TestProperty_OnlyHostChangesState(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		room, host, err := rooms.NewStore().Create("Host", rooms.Unlimited())
		if err != nil {
			rt.Fatal(err)
		}
		a := NewArbiter()
		members := []string{host.ID}
		for i := 0; i < 3; i++ {
			members = append(members, room.Players.Add(fmt.Sprintf("p%d", i)).ID)
		}

		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 40).Draw(rt, "ops")
		for i, op := range ops {
			who := rapid.SampledFrom(members).Draw(rt, fmt.Sprintf("who%d", i))
			wasLocked := a.IsLocked(room)
			before := room.Players.Get(members[1]).Score

			switch op {
			case 0:
				_, err := a.Buzz(room, who)
				if wasLocked && !gameerr.Is(err, gameerr.BuzzerLocked) {
					rt.Fatalf("buzz on locked buzzer: err = %v", err)
				}
			case 1:
				err := a.Reset(room, who)
				if who != host.ID {
					if !gameerr.Is(err, gameerr.Unauthorized) || a.IsLocked(room) != wasLocked {
						rt.Fatalf("non-host reset changed state or succeeded: %v", err)
					}
				} else if err != nil || a.IsLocked(room) {
					rt.Fatalf("host reset failed: %v", err)
				}
			case 2:
				_, err := a.UpdateScore(room, who, members[1], 3)
				after := room.Players.Get(members[1]).Score
				if who != host.ID {
					if !gameerr.Is(err, gameerr.Unauthorized) || after != before {
						rt.Fatalf("non-host score change: err = %v, %d -> %d", err, before, after)
					}
				} else if err != nil || after != before+3 {
					rt.Fatalf("host score change: err = %v, %d -> %d", err, before, after)
				}
			}
		}
	})
}
