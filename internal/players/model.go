package players

import "time"

type Player struct {
	ID        string
	Name      string
	Score     int
	Connected bool
	RoomID    string
	JoinedAt  time.Time
}

// Public is the wire projection of a Player.
type Public struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

func (p *Player) Public() Public {
	return Public{
		ID:        p.ID,
		Username:  p.Name,
		Score:     p.Score,
		Connected: p.Connected,
	}
}
