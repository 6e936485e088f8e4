package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// EventSink is the hub surface chain-event ingestion drives.
type EventSink interface {
	Broadcast(channel string, data []byte)
	SendNotification(userID string, n domain.Notification)
}

// WebhookHandler ingests externally-sourced chain events and republishes
// each as exactly one hub action via a fixed dispatch table. Unknown event
// types are logged and dropped; one event's failure never blocks siblings.
type WebhookHandler struct {
	sink   EventSink
	logger *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(sink EventSink, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		sink:   sink,
		logger: logger,
	}
}

// chainEventBatch is the webhook request body.
type chainEventBatch struct {
	Events []domain.ChainEvent `json:"events"`
}

// chainEventResult summarises a processed batch.
type chainEventResult struct {
	Processed int `json:"processed"`
	Dropped   int `json:"dropped"`
}

// HandleChainEvents processes a batch of chain events.
// POST /webhooks/chain-events
func (h *WebhookHandler) HandleChainEvents(w http.ResponseWriter, r *http.Request) {
	var batch chainEventBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var result chainEventResult
	for _, event := range batch.Events {
		if err := h.dispatch(event); err != nil {
			result.Dropped++
			h.logger.WarnContext(r.Context(), "handler: chain event dropped",
				slog.String("event_type", event.Type),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Processed++
	}

	writeJSON(w, http.StatusOK, result)
}

// dispatch maps one event type to one hub action.
func (h *WebhookHandler) dispatch(event domain.ChainEvent) error {
	switch event.Type {
	case domain.EventLeagueCreated:
		h.sink.Broadcast(domain.ChannelLeagues, event.Data)

	case domain.EventUserJoined, domain.EventScoreUpdated:
		var data struct {
			LeagueID string `json:"league_id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.LeagueID == "" {
			return fmt.Errorf("missing league_id")
		}
		h.sink.Broadcast(fmt.Sprintf("league:%s:leaderboard", data.LeagueID), event.Data)

	case domain.EventVaultCreated:
		h.sink.Broadcast(domain.ChannelVaults, event.Data)

	case domain.EventTradeExecuted:
		var data struct {
			VaultID string `json:"vault_id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.VaultID == "" {
			return fmt.Errorf("missing vault_id")
		}
		h.sink.Broadcast("vault:"+data.VaultID, event.Data)

	case domain.EventMarketCreated:
		h.sink.Broadcast(domain.ChannelPredictions, event.Data)

	case domain.EventPredictionPlaced:
		var data struct {
			MarketID string `json:"market_id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.MarketID == "" {
			return fmt.Errorf("missing market_id")
		}
		h.sink.Broadcast("prediction:"+data.MarketID, event.Data)

	case domain.EventRewardDistributed:
		var data struct {
			Distributions []domain.RewardDistribution `json:"distributions"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("invalid distributions")
		}
		for _, dist := range data.Distributions {
			if dist.Recipient == "" {
				continue
			}
			h.sink.SendNotification(dist.Recipient, domain.Notification{
				Title:     "Rewards Distributed",
				Message:   fmt.Sprintf("You received %.2f", dist.Amount),
				Type:      "success",
				Timestamp: time.Now().UTC(),
			})
		}

	default:
		return fmt.Errorf("unknown event type")
	}
	return nil
}
