package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

type sinkBroadcast struct {
	channel string
	data    []byte
}

type sinkNotification struct {
	userID string
	n      domain.Notification
}

// recordSink captures hub actions for assertions.
type recordSink struct {
	broadcasts    []sinkBroadcast
	notifications []sinkNotification
}

func (s *recordSink) Broadcast(channel string, data []byte) {
	s.broadcasts = append(s.broadcasts, sinkBroadcast{channel: channel, data: data})
}

func (s *recordSink) SendNotification(userID string, n domain.Notification) {
	s.notifications = append(s.notifications, sinkNotification{userID: userID, n: n})
}

func postEvents(t *testing.T, h *WebhookHandler, body string) (*httptest.ResponseRecorder, chainEventResult) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/chain-events", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.HandleChainEvents(rr, req)

	var result chainEventResult
	if rr.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	}
	return rr, result
}

func newTestWebhook() (*WebhookHandler, *recordSink) {
	sink := &recordSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWebhookHandler(sink, logger), sink
}

func TestChainEventDispatchTable(t *testing.T) {
	tests := []struct {
		eventType   string
		data        string
		wantChannel string
	}{
		{domain.EventLeagueCreated, `{"league_id":"42"}`, "leagues"},
		{domain.EventUserJoined, `{"league_id":"42"}`, "league:42:leaderboard"},
		{domain.EventScoreUpdated, `{"league_id":"42","score":99}`, "league:42:leaderboard"},
		{domain.EventVaultCreated, `{"vault_id":"7"}`, "vaults"},
		{domain.EventTradeExecuted, `{"vault_id":"7"}`, "vault:7"},
		{domain.EventMarketCreated, `{"market_id":"13"}`, "predictions"},
		{domain.EventPredictionPlaced, `{"market_id":"13"}`, "prediction:13"},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			h, sink := newTestWebhook()

			body := `{"events":[{"type":"` + tt.eventType + `","data":` + tt.data + `}]}`
			rr, result := postEvents(t, h, body)

			require.Equal(t, http.StatusOK, rr.Code)
			require.Equal(t, 1, result.Processed)
			require.Len(t, sink.broadcasts, 1)
			require.Equal(t, tt.wantChannel, sink.broadcasts[0].channel)
			require.JSONEq(t, tt.data, string(sink.broadcasts[0].data))
		})
	}
}

func TestRewardDistributionFansOut(t *testing.T) {
	h, sink := newTestWebhook()

	body := `{"events":[{"type":"RewardDistributedEvent","data":{"distributions":[
		{"recipient":"alice","amount":12.5},
		{"recipient":"bob","amount":7.25}
	]}}]}`
	rr, result := postEvents(t, h, body)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, result.Processed)
	require.Empty(t, sink.broadcasts)
	require.Len(t, sink.notifications, 2)
	require.Equal(t, "alice", sink.notifications[0].userID)
	require.Equal(t, "You received 12.50", sink.notifications[0].n.Message)
	require.Equal(t, "bob", sink.notifications[1].userID)
	require.Equal(t, "success", sink.notifications[1].n.Type)
}

func TestUnknownEventTypeDropped(t *testing.T) {
	h, sink := newTestWebhook()

	body := `{"events":[{"type":"SomethingElseEvent","data":{}}]}`
	rr, result := postEvents(t, h, body)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 0, result.Processed)
	require.Equal(t, 1, result.Dropped)
	require.Empty(t, sink.broadcasts)
}

func TestBadEventDoesNotBlockSiblings(t *testing.T) {
	h, sink := newTestWebhook()

	// The malformed TradeExecutedEvent is dropped; both neighbours still
	// dispatch.
	body := `{"events":[
		{"type":"LeagueCreatedEvent","data":{"league_id":"1"}},
		{"type":"TradeExecutedEvent","data":{}},
		{"type":"VaultCreatedEvent","data":{"vault_id":"9"}}
	]}`
	rr, result := postEvents(t, h, body)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 2, result.Processed)
	require.Equal(t, 1, result.Dropped)
	require.Len(t, sink.broadcasts, 2)
	require.Equal(t, "leagues", sink.broadcasts[0].channel)
	require.Equal(t, "vaults", sink.broadcasts[1].channel)
}

func TestMalformedBatchRejected(t *testing.T) {
	h, _ := newTestWebhook()

	rr, _ := postEvents(t, h, `{not json`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
