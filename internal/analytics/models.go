package analytics

import "time"

type PlayerRecap struct {
	PlayerID   string     `json:"playerId"`
	Username   string     `json:"username"`
	Buzzes     int        `json:"buzzes"`
	FinalScore int        `json:"finalScore"`
	JoinedAt   time.Time  `json:"joinedAt"`
	LeftAt     *time.Time `json:"leftAt,omitempty"`
}

type RoomRecap struct {
	RoomID    string        `json:"roomId"`
	Code      string        `json:"code"`
	CreatedAt time.Time     `json:"createdAt"`
	ClosedAt  *time.Time    `json:"closedAt,omitempty"`
	Players   []PlayerRecap `json:"players"`
}

type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	Value    int    `json:"value"`
	Rank     int    `json:"rank"`
}
