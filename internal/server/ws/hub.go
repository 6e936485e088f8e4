// Package ws is the event distribution hub: a registry of live WebSocket
// connections, each with an optional authenticated identity and a set of
// channel subscriptions, fanning out broadcasts, direct messages, and
// notifications.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256

	// sweepInterval is how often dead connections are reaped.
	sweepInterval = 30 * time.Second
)

// bridgedChannels are the event bus subscriptions the hub forwards to
// connected clients. "user:*" traffic becomes direct messages; everything
// else is re-broadcast on its channel.
var bridgedChannels = []string{
	domain.ChannelTransactions,
	domain.ChannelBalance,
	domain.ChannelLeagues,
	domain.ChannelVaults,
	domain.ChannelPredictions,
	domain.ChannelGlobal,
	"user:*",
}

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// TokenVerifier authenticates a client-supplied token, returning the user id
// it belongs to. Implemented by auth.Verifier.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// client is a single WebSocket connection. A connection is anonymous until
// an auth frame is accepted; anonymous connections cannot subscribe.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	mu     sync.RWMutex
	userID string
	subs   map[string]bool
	closed bool
}

// Stats is a point-in-time view of the connection registry.
type Stats struct {
	Total         int `json:"total"`
	Authenticated int `json:"authenticated"`
	Anonymous     int `json:"anonymous"`
}

// Hub owns the connection registry. Deliveries iterate a snapshot of the
// registry so connections closing mid-broadcast never corrupt it; clients
// whose send buffers are full are marked dead and reaped by the periodic
// sweep in Run.
type Hub struct {
	verifier TokenVerifier
	bus      domain.EventBus // optional
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]bool
}

// NewHub creates a hub. bus may be nil when no external event bridge is
// wired; Broadcast and SendToUser still work for in-process callers.
func NewHub(verifier TokenVerifier, bus domain.EventBus, logger *slog.Logger) *Hub {
	return &Hub{
		verifier: verifier,
		bus:      bus,
		logger:   logger.With(slog.String("component", "hub")),
		clients:  make(map[*client]bool),
	}
}

// Run drives the dead-connection sweep and, when a bus is wired, the event
// bridge. It blocks until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus != nil {
		for _, ch := range bridgedChannels {
			go h.bridgeChannel(ctx, ch)
		}
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case <-ticker.C:
			h.sweep()
		}
	}
}

// bridgeChannel forwards one bus subscription into hub deliveries.
func (h *Hub) bridgeChannel(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("bus subscription failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}

	for msg := range msgs {
		if userID, ok := strings.CutPrefix(msg.Channel, "user:"); ok {
			h.SendToUser(userID, msg.Payload)
			continue
		}
		h.Broadcast(msg.Channel, msg.Payload)
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
		subs: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client connected", slog.Int("total_clients", total))

	go c.writePump()
	go c.readPump()
}

// Broadcast delivers data to every open connection subscribed to channel,
// wrapped in a broadcast frame.
func (h *Hub) Broadcast(channel string, data []byte) {
	frame := broadcastFrame(channel, data)
	for _, c := range h.snapshot() {
		if c.isSubscribed(channel) {
			h.deliver(c, frame)
		}
	}
}

// SendToUser delivers data to every open connection authenticated as userID,
// wrapped in a direct message frame. A user may hold several connections;
// all receive the message.
func (h *Hub) SendToUser(userID string, data []byte) {
	frame := directMessageFrame(data)
	for _, c := range h.snapshot() {
		if c.identity() == userID {
			h.deliver(c, frame)
		}
	}
}

// SendNotification delivers a notification to every connection authenticated
// as userID.
func (h *Hub) SendNotification(userID string, n domain.Notification) {
	frame := notificationFrame(n)
	for _, c := range h.snapshot() {
		if c.identity() == userID {
			h.deliver(c, frame)
		}
	}
}

// Stats counts connections by authentication state.
func (h *Hub) Stats() Stats {
	var s Stats
	for _, c := range h.snapshot() {
		s.Total++
		if c.identity() != "" {
			s.Authenticated++
		} else {
			s.Anonymous++
		}
	}
	return s
}

// snapshot copies the registry so deliveries iterate without holding the
// hub lock.
func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// deliver enqueues a frame, marking the client dead when its buffer is full.
// Dead clients are pruned by the sweep, not synchronously.
func (h *Hub) deliver(c *client, frame []byte) {
	if frame == nil {
		return
	}
	if !c.enqueue(frame) {
		h.logger.Warn("dropping message for dead or slow client",
			slog.String("user_id", c.identity()),
		)
	}
}

// sweep removes connections that went dead since the last pass.
func (h *Hub) sweep() {
	var dead []*client
	h.mu.Lock()
	for c := range h.clients {
		if c.isClosed() {
			delete(h.clients, c)
			dead = append(dead, c)
		}
	}
	remaining := len(h.clients)
	h.mu.Unlock()

	for _, c := range dead {
		c.shutdown()
	}
	if len(dead) > 0 {
		h.logger.Info("swept dead connections",
			slog.Int("removed", len(dead)),
			slog.Int("total_clients", remaining),
		)
	}
}

// drop removes a single connection immediately, used when its read pump
// exits.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	c.shutdown()
	h.logger.Info("client disconnected", slog.Int("total_clients", total))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
}

// readPump reads client frames until the connection errors or closes. Every
// protocol violation answers with an error frame; the connection is never
// dropped for a bad message.
func (c *client) readPump() {
	defer c.hub.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}
		c.handleFrame(message)
	}
}

func (c *client) handleFrame(message []byte) {
	var frame clientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.enqueue(errorFrame("invalid message format"))
		return
	}

	switch frame.Type {
	case "auth":
		c.handleAuth(frame.Token)
	case "subscribe":
		c.handleSubscribe(frame.Channel)
	case "unsubscribe":
		c.handleUnsubscribe(frame.Channel)
	case "ping":
		c.enqueue(marshalFrame(serverFrame{Type: "pong"}))
	default:
		c.enqueue(errorFrame("unknown message type"))
	}
}

// handleAuth attaches an identity to the connection. A rejected token leaves
// the connection open and anonymous.
func (c *client) handleAuth(token string) {
	userID, err := c.hub.verifier.Verify(token)
	if err != nil {
		c.enqueue(marshalFrame(serverFrame{Type: "auth_error", Message: "invalid token"}))
		return
	}

	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()

	c.enqueue(marshalFrame(serverFrame{Type: "auth_success", UserID: userID}))
	c.hub.logger.Info("client authenticated", slog.String("user_id", userID))
}

func (c *client) handleSubscribe(channel string) {
	if c.identity() == "" {
		c.enqueue(errorFrame("authentication required"))
		return
	}
	if channel == "" {
		c.enqueue(errorFrame("channel is required"))
		return
	}

	c.mu.Lock()
	c.subs[channel] = true
	c.mu.Unlock()

	c.enqueue(marshalFrame(serverFrame{Type: "subscribed", Channel: channel}))
}

func (c *client) handleUnsubscribe(channel string) {
	if channel == "" {
		c.enqueue(errorFrame("channel is required"))
		return
	}

	c.mu.Lock()
	delete(c.subs, channel)
	c.mu.Unlock()

	c.enqueue(marshalFrame(serverFrame{Type: "unsubscribed", Channel: channel}))
}

// enqueue hands a frame to the write pump. It returns false when the client
// is dead or its buffer is full; a full buffer marks the client dead.
func (c *client) enqueue(frame []byte) bool {
	if frame == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.closed = true
		return false
	}
}

func (c *client) identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

func (c *client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// shutdown closes the connection and stops the write pump. Safe to call more
// than once.
func (c *client) shutdown() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.mu.Unlock()

	c.conn.Close()
}

// writePump writes queued frames and periodic pings until the connection
// shuts down.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
