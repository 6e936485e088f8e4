package domain

import "time"

// League is a sponsored trading competition users can join for an entry fee.
type League struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	SponsorName     string    `json:"sponsor_name"`
	EntryFee        float64   `json:"entry_fee"`
	PrizePool       float64   `json:"prize_pool"`
	MaxParticipants int       `json:"max_participants"`
	Participants    int       `json:"participants"`
	Public          bool      `json:"public"`
	EndsAt          time.Time `json:"ends_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// LeaderboardEntry is one row of a league leaderboard broadcast.
type LeaderboardEntry struct {
	UserID   string  `json:"user_id"`
	Username string  `json:"username"`
	Profit   float64 `json:"profit"`
	Rank     int     `json:"rank"`
}
