package analytics

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"quizbuzzer/internal/db"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandings(t *testing.T) {
	in := []PlayerRecap{
		{Username: "Carol", FinalScore: 5, Buzzes: 1},
		{Username: "Alice", FinalScore: 10, Buzzes: 2},
		{Username: "Bob", FinalScore: 10, Buzzes: 4},
		{Username: "Dave", FinalScore: -3, Buzzes: 9},
		{Username: "Erin", FinalScore: 5, Buzzes: 1},
	}

	got := Standings(in)
	names := make([]string, len(got))
	for i, p := range got {
		names[i] = p.Username
	}
	assert.Equal(t, []string{"Bob", "Alice", "Carol", "Erin", "Dave"}, names)
	assert.Equal(t, "Carol", in[0].Username, "input must not be reordered")
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory(CategoryPoints))
	assert.True(t, ValidCategory(CategoryBuzzes))
	assert.False(t, ValidCategory("score"))
	assert.False(t, ValidCategory(""))
}

func TestGetLeaderboard_UnknownCategory(t *testing.T) {
	q := NewQueries(nil)
	_, err := q.GetLeaderboard(context.Background(), "reaction", 10)
	assert.Error(t, err)
}

func purgeRoom(t *testing.T, dsn, roomID string) {
	t.Helper()
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Logf("cleanup: %v", err)
		return
	}
	defer conn.Close()
	for _, q := range []string{
		"DELETE FROM room_events WHERE room_id = $1",
		"DELETE FROM room_players WHERE room_id = $1",
		"DELETE FROM rooms WHERE id = $1",
	} {
		if _, err := conn.Exec(q, roomID); err != nil {
			t.Logf("cleanup: %v", err)
		}
	}
}

func TestGetRoomRecap(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}
	ctx := context.Background()
	database, err := db.Connect(ctx, dsn, nil)
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.Migrate(ctx))

	roomID := uuid.NewString()
	host, guest := uuid.NewString(), uuid.NewString()
	now := time.Now().UTC()
	t.Cleanup(func() { purgeRoom(t, dsn, roomID) })

	require.NoError(t, database.BatchRecordEvents(ctx, []db.RoomEvent{
		{RoomID: roomID, Kind: db.EventRoomCreated, Code: "RECAP1", OccurredAt: now},
		{RoomID: roomID, Kind: db.EventPlayerJoined, PlayerID: host, Username: "Host", OccurredAt: now},
		{RoomID: roomID, Kind: db.EventPlayerJoined, PlayerID: guest, Username: "Guest", OccurredAt: now},
		{RoomID: roomID, Kind: db.EventBuzz, PlayerID: guest, OccurredAt: now},
		{RoomID: roomID, Kind: db.EventScore, PlayerID: guest, Points: 3, Score: 3, OccurredAt: now},
	}))

	recap, err := NewQueries(database).GetRoomRecap(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "RECAP1", recap.Code)
	require.Len(t, recap.Players, 2)
	assert.Equal(t, guest, recap.Players[0].PlayerID)
	assert.Equal(t, 1, recap.Players[0].Buzzes)
	assert.Equal(t, 3, recap.Players[0].FinalScore)
}
