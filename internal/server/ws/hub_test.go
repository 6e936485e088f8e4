package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// stubVerifier maps tokens to user ids.
type stubVerifier map[string]string

func (v stubVerifier) Verify(token string) (string, error) {
	userID, ok := v[token]
	if !ok {
		return "", errors.New("token not recognized")
	}
	return userID, nil
}

// chanBus delivers published messages to subscribers whose pattern matches
// the channel, mimicking the Redis bus.
type chanBus struct {
	mu   sync.Mutex
	subs []busSub
}

type busSub struct {
	pattern string
	ch      chan domain.BusMessage
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if matchPattern(sub.pattern, channel) {
			sub.ch <- domain.BusMessage{Channel: channel, Payload: payload}
		}
	}
	return nil
}

func (b *chanBus) Subscribe(ctx context.Context, pattern string) (<-chan domain.BusMessage, error) {
	ch := make(chan domain.BusMessage, 16)
	b.mu.Lock()
	b.subs = append(b.subs, busSub{pattern: pattern, ch: ch})
	b.mu.Unlock()
	context.AfterFunc(ctx, func() { close(ch) })
	return ch, nil
}

func matchPattern(pattern, channel string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(channel, prefix)
	}
	return pattern == channel
}

func newTestHub(t *testing.T, bus domain.EventBus) (*Hub, *httptest.Server) {
	t.Helper()
	verifier := stubVerifier{
		"token-alice": "alice",
		"token-bob":   "bob",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(verifier, bus, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", hub.HandleWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func recv(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame serverFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// authenticate runs the auth handshake and waits for the ack.
func authenticate(t *testing.T, conn *websocket.Conn, token string) {
	t.Helper()
	send(t, conn, map[string]any{"type": "auth", "token": token})
	frame := recv(t, conn)
	require.Equal(t, "auth_success", frame.Type)
}

// subscribe subscribes to a channel and waits for the ack.
func subscribe(t *testing.T, conn *websocket.Conn, channel string) {
	t.Helper()
	send(t, conn, map[string]any{"type": "subscribe", "channel": channel})
	frame := recv(t, conn)
	require.Equal(t, "subscribed", frame.Type)
	require.Equal(t, channel, frame.Channel)
}

func TestAuthHandshake(t *testing.T) {
	_, srv := newTestHub(t, nil)
	conn := dial(t, srv)

	send(t, conn, map[string]any{"type": "auth", "token": "token-alice"})
	frame := recv(t, conn)
	require.Equal(t, "auth_success", frame.Type)
	require.Equal(t, "alice", frame.UserID)
}

func TestAuthRejectionKeepsConnection(t *testing.T) {
	_, srv := newTestHub(t, nil)
	conn := dial(t, srv)

	send(t, conn, map[string]any{"type": "auth", "token": "bogus"})
	frame := recv(t, conn)
	require.Equal(t, "auth_error", frame.Type)

	// The connection stays open and anonymous; pings still work.
	send(t, conn, map[string]any{"type": "ping"})
	require.Equal(t, "pong", recv(t, conn).Type)
}

func TestAnonymousCannotSubscribe(t *testing.T) {
	_, srv := newTestHub(t, nil)
	conn := dial(t, srv)

	send(t, conn, map[string]any{"type": "subscribe", "channel": "leagues"})
	frame := recv(t, conn)
	require.Equal(t, "error", frame.Type)
	require.Equal(t, "authentication required", frame.Message)

	// Not dropped: auth afterwards still succeeds.
	authenticate(t, conn, "token-alice")
}

func TestMalformedMessageKeepsConnection(t *testing.T) {
	_, srv := newTestHub(t, nil)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frame := recv(t, conn)
	require.Equal(t, "error", frame.Type)
	require.Equal(t, "invalid message format", frame.Message)

	send(t, conn, map[string]any{"type": "ping"})
	require.Equal(t, "pong", recv(t, conn).Type)
}

func TestBroadcastScoping(t *testing.T) {
	hub, srv := newTestHub(t, nil)

	alice := dial(t, srv)
	authenticate(t, alice, "token-alice")
	subscribe(t, alice, "league:42:leaderboard")

	bob := dial(t, srv)
	authenticate(t, bob, "token-bob")
	subscribe(t, bob, "league:42:leaderboard")

	other := dial(t, srv)
	authenticate(t, other, "token-alice")
	subscribe(t, other, "league:7:leaderboard")

	payload := []byte(`{"rank":1}`)
	hub.Broadcast("league:42:leaderboard", payload)

	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := recv(t, conn)
		require.Equal(t, "broadcast", frame.Type)
		require.Equal(t, "league:42:leaderboard", frame.Channel)
		require.JSONEq(t, `{"rank":1}`, string(frame.Data))
	}

	// The third connection is subscribed to a different league and gets
	// nothing.
	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var unexpected serverFrame
	require.Error(t, other.ReadJSON(&unexpected))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub, srv := newTestHub(t, nil)
	conn := dial(t, srv)
	authenticate(t, conn, "token-alice")
	subscribe(t, conn, "vaults")

	send(t, conn, map[string]any{"type": "unsubscribe", "channel": "vaults"})
	frame := recv(t, conn)
	require.Equal(t, "unsubscribed", frame.Type)

	hub.Broadcast("vaults", []byte(`{}`))
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var unexpected serverFrame
	require.Error(t, conn.ReadJSON(&unexpected))
}

func TestSendToUserReachesAllConnections(t *testing.T) {
	hub, srv := newTestHub(t, nil)

	first := dial(t, srv)
	authenticate(t, first, "token-alice")
	second := dial(t, srv)
	authenticate(t, second, "token-alice")
	stranger := dial(t, srv)
	authenticate(t, stranger, "token-bob")

	hub.SendToUser("alice", []byte(`{"hello":"alice"}`))

	for _, conn := range []*websocket.Conn{first, second} {
		frame := recv(t, conn)
		require.Equal(t, "direct_message", frame.Type)
		require.JSONEq(t, `{"hello":"alice"}`, string(frame.Data))
	}

	stranger.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var unexpected serverFrame
	require.Error(t, stranger.ReadJSON(&unexpected))
}

func TestSendNotification(t *testing.T) {
	hub, srv := newTestHub(t, nil)
	conn := dial(t, srv)
	authenticate(t, conn, "token-alice")

	hub.SendNotification("alice", domain.Notification{
		Title:     "Rewards Distributed",
		Message:   "You received 12.50",
		Type:      "success",
		Timestamp: time.Now().UTC(),
	})

	frame := recv(t, conn)
	require.Equal(t, "notification", frame.Type)
	require.NotNil(t, frame.Notification)
	require.Equal(t, "Rewards Distributed", frame.Notification.Title)
	require.Equal(t, "success", frame.Notification.Type)
}

func TestStats(t *testing.T) {
	hub, srv := newTestHub(t, nil)

	authed := dial(t, srv)
	authenticate(t, authed, "token-alice")
	anon := dial(t, srv)
	send(t, anon, map[string]any{"type": "ping"})
	require.Equal(t, "pong", recv(t, anon).Type)

	stats := hub.Stats()
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Authenticated)
	require.Equal(t, 1, stats.Anonymous)
}

func TestBusBridge(t *testing.T) {
	bus := &chanBus{}
	hub, srv := newTestHub(t, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dial(t, srv)
	authenticate(t, conn, "token-alice")
	subscribe(t, conn, domain.ChannelTransactions)

	// Broadcast channels re-broadcast on their channel name.
	require.NoError(t, bus.Publish(ctx, domain.ChannelTransactions, []byte(`{"event":"transaction_settled"}`)))

	frame := recv(t, conn)
	require.Equal(t, "broadcast", frame.Type)
	require.Equal(t, domain.ChannelTransactions, frame.Channel)

	// user:* traffic becomes a direct message for that user.
	require.NoError(t, bus.Publish(ctx, domain.UserChannel("alice"), []byte(`{"event":"hello"}`)))
	frame = recv(t, conn)
	require.Equal(t, "direct_message", frame.Type)
	require.JSONEq(t, `{"event":"hello"}`, string(frame.Data))
}
