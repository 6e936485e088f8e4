package domain

import "time"

// MarketOutcome is one side of a prediction market with its current odds.
type MarketOutcome struct {
	Label  string  `json:"label"`
	Odds   float64 `json:"odds"`
	Staked float64 `json:"staked"`
}

// PredictionMarket is an outcome market users can stake on.
type PredictionMarket struct {
	ID          string          `json:"id"`
	Question    string          `json:"question"`
	Outcomes    []MarketOutcome `json:"outcomes"`
	TotalStaked float64         `json:"total_staked"`
	ResolvesAt  time.Time       `json:"resolves_at"`
	Resolved    bool            `json:"resolved"`
	CreatedAt   time.Time       `json:"created_at"`
}
