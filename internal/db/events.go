package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type EventKind string

const (
	EventRoomCreated  EventKind = "room-created"
	EventPlayerJoined EventKind = "player-joined"
	EventBuzz         EventKind = "buzz"
	EventBuzzerReset  EventKind = "buzzer-reset"
	EventScore        EventKind = "score"
	EventPlayerLeft   EventKind = "player-left"
	EventRoomClosed   EventKind = "room-closed"
)

// RoomEvent is one committed state change. Fields beyond RoomID, Kind and
// OccurredAt are set only for the kinds that carry them.
type RoomEvent struct {
	RoomID     string
	Kind       EventKind
	PlayerID   string
	Username   string
	Code       string
	MaxPlayers *int
	Points     int
	Score      int
	OccurredAt time.Time
}

// BatchRecordEvents writes events in order inside one transaction and keeps
// the rooms and room_players tables in step with them.
func (d *DB) BatchRecordEvents(ctx context.Context, events []RoomEvent) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO room_events (room_id, kind, player_id, points, score, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if err := applyEvent(ctx, tx, ev); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, ev.RoomID, string(ev.Kind), nullString(ev.PlayerID),
			eventPoints(ev), eventScore(ev), ev.OccurredAt); err != nil {
			return fmt.Errorf("recording %s event in batch: %w", ev.Kind, err)
		}
	}

	return tx.Commit()
}

func applyEvent(ctx context.Context, tx *sql.Tx, ev RoomEvent) error {
	var err error
	switch ev.Kind {
	case EventRoomCreated:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rooms (id, code, max_players, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, ev.RoomID, ev.Code, ev.MaxPlayers, ev.OccurredAt)
	case EventPlayerJoined:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO room_players (room_id, player_id, username, joined_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (room_id, player_id) DO UPDATE SET username = $3
		`, ev.RoomID, ev.PlayerID, ev.Username, ev.OccurredAt)
	case EventScore:
		_, err = tx.ExecContext(ctx, `
			UPDATE room_players SET score = $3 WHERE room_id = $1 AND player_id = $2
		`, ev.RoomID, ev.PlayerID, ev.Score)
	case EventPlayerLeft:
		_, err = tx.ExecContext(ctx, `
			UPDATE room_players SET left_at = $3, score = $4 WHERE room_id = $1 AND player_id = $2
		`, ev.RoomID, ev.PlayerID, ev.OccurredAt, ev.Score)
	case EventRoomClosed:
		_, err = tx.ExecContext(ctx, `
			UPDATE rooms SET closed_at = $2 WHERE id = $1
		`, ev.RoomID, ev.OccurredAt)
	}
	if err != nil {
		return fmt.Errorf("applying %s event: %w", ev.Kind, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func eventPoints(ev RoomEvent) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(ev.Points), Valid: ev.Kind == EventScore}
}

func eventScore(ev RoomEvent) sql.NullInt64 {
	valid := ev.Kind == EventScore || ev.Kind == EventPlayerLeft
	return sql.NullInt64{Int64: int64(ev.Score), Valid: valid}
}
