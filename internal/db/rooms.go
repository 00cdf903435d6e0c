package db

import (
	"context"
	"fmt"
	"time"
)

type RoomRecord struct {
	ID         string
	Code       string
	MaxPlayers *int
	CreatedAt  time.Time
	ClosedAt   *time.Time
}

func (d *DB) GetRoom(ctx context.Context, id string) (*RoomRecord, error) {
	r := RoomRecord{ID: id}
	err := d.conn.QueryRowContext(ctx, `
		SELECT code, max_players, created_at, closed_at FROM rooms WHERE id = $1
	`, id).Scan(&r.Code, &r.MaxPlayers, &r.CreatedAt, &r.ClosedAt)
	if err != nil {
		return nil, fmt.Errorf("getting room: %w", err)
	}
	return &r, nil
}
