package domain

import (
	"encoding/json"
	"time"
)

// Chain event types delivered by the webhook collaborator. Each maps to
// exactly one hub action; anything else is logged and dropped.
const (
	EventLeagueCreated     = "LeagueCreatedEvent"
	EventUserJoined        = "UserJoinedEvent"
	EventScoreUpdated      = "ScoreUpdatedEvent"
	EventVaultCreated      = "VaultCreatedEvent"
	EventTradeExecuted     = "TradeExecutedEvent"
	EventMarketCreated     = "MarketCreatedEvent"
	EventPredictionPlaced  = "PredictionPlacedEvent"
	EventRewardDistributed = "RewardDistributedEvent"
)

// ChainEvent is a single typed event from the chain-event webhook. Data is
// kept raw so each handler decodes only the fields it needs.
type ChainEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// RewardDistribution is one recipient's share of a RewardDistributedEvent.
type RewardDistribution struct {
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
}

// Notification is a system message pushed to a single user through the hub.
type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"` // info | warning | success | error
	Timestamp time.Time `json:"timestamp"`
}

// Well-known event bus channels. The hub bridges these to connected clients;
// per-user direct sends travel on UserChannel(id).
const (
	ChannelTransactions = "transactions"
	ChannelBalance      = "balance"
	ChannelLeagues      = "leagues"
	ChannelVaults       = "vaults"
	ChannelPredictions  = "predictions"
	ChannelGlobal       = "global"
)

// UserChannel returns the bus channel carrying direct messages for a user.
func UserChannel(userID string) string {
	return "user:" + userID
}
