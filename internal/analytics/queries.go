package analytics

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"quizbuzzer/internal/db"
)

// Leaderboard categories.
const (
	CategoryPoints = "points"
	CategoryBuzzes = "buzzes"
)

func ValidCategory(category string) bool {
	return category == CategoryPoints || category == CategoryBuzzes
}

type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

// GetRoomRecap returns every player who was ever in the room, in final
// standings order.
func (q *Queries) GetRoomRecap(ctx context.Context, roomID string) (*RoomRecap, error) {
	room, err := q.DB.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	recap := &RoomRecap{
		RoomID:    room.ID,
		Code:      room.Code,
		CreatedAt: room.CreatedAt,
		ClosedAt:  room.ClosedAt,
	}

	rows, err := q.DB.Query(ctx, `
		SELECT rp.player_id, rp.username, rp.score, rp.joined_at, rp.left_at,
			(SELECT COUNT(*) FROM room_events e
			 WHERE e.room_id = rp.room_id AND e.player_id = rp.player_id AND e.kind = $2) AS buzzes
		FROM room_players rp
		WHERE rp.room_id = $1
	`, roomID, string(db.EventBuzz))
	if err != nil {
		return nil, fmt.Errorf("getting room players: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p PlayerRecap
		if err := rows.Scan(&p.PlayerID, &p.Username, &p.FinalScore, &p.JoinedAt, &p.LeftAt, &p.Buzzes); err != nil {
			return nil, err
		}
		recap.Players = append(recap.Players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recap.Players = Standings(recap.Players)
	return recap, nil
}

// Standings orders players by score, then by buzzes, then by name.
func Standings(players []PlayerRecap) []PlayerRecap {
	out := slices.Clone(players)
	slices.SortStableFunc(out, func(a, b PlayerRecap) int {
		if c := cmp.Compare(b.FinalScore, a.FinalScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Buzzes, a.Buzzes); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	return out
}

func (q *Queries) GetLeaderboard(ctx context.Context, category string, limit int) ([]LeaderboardEntry, error) {
	var query string
	switch category {
	case CategoryPoints:
		query = `
			SELECT player_id, MAX(username), COALESCE(SUM(score), 0) AS value
			FROM room_players
			GROUP BY player_id
			ORDER BY value DESC
			LIMIT $1`
	case CategoryBuzzes:
		query = `
			SELECT e.player_id, MAX(rp.username), COUNT(*) AS value
			FROM room_events e
			JOIN room_players rp ON rp.room_id = e.room_id AND rp.player_id = e.player_id
			WHERE e.kind = 'buzz'
			GROUP BY e.player_id
			ORDER BY value DESC
			LIMIT $1`
	default:
		return nil, fmt.Errorf("unknown leaderboard category: %s", category)
	}

	rows, err := q.DB.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Username, &e.Value); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
