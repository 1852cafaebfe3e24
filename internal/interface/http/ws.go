package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deoglory/study-engine/internal/domain/presence"
	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRESENCE WEBSOCKET
// ══════════════════════════════════════════════════════════════════════════════

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	// Must be longer than pingPeriod.
	pongWait = 60 * time.Second

	// pingPeriod is how often pings are sent to the peer.
	pingPeriod = (pongWait * 9) / 10

	// snapshotPeriod is how often the online snapshot is broadcast.
	snapshotPeriod = 15 * time.Second

	// maxWSMessageSize caps inbound messages. Clients only send heartbeats.
	maxWSMessageSize = 512

	// clientSendBuffer is the per-connection outbound queue size.
	clientSendBuffer = 8
)

// presenceSnapshot is the message broadcast to connected clients.
type presenceSnapshot struct {
	Type        string    `json:"type"`
	OnlineCount int       `json:"online_count"`
	UserIDs     []string  `json:"user_ids"`
	GeneratedAt time.Time `json:"generated_at"`
}

// presenceClient is a single connected WebSocket peer.
type presenceClient struct {
	hub    *PresenceHub
	conn   *websocket.Conn
	userID shared.UserID
	send   chan []byte
}

// PresenceHub fans the online snapshot out to connected clients and keeps
// the tracker in sync with connection lifecycles. The tracker is the source
// of truth: the hub only mirrors connect, heartbeat and disconnect into it,
// so multiple server instances converge on the same online set.
type PresenceHub struct {
	tracker  presence.Tracker
	logger   *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*presenceClient]bool

	done     chan struct{}
	stopOnce sync.Once
}

// NewPresenceHub creates a presence hub backed by the given tracker.
func NewPresenceHub(tracker presence.Tracker, log *logger.Logger) *PresenceHub {
	if log == nil {
		log = logger.New(logger.DefaultOptions())
	}

	return &PresenceHub{
		tracker: tracker,
		logger:  log.With(logger.String("component", "presence_hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is enforced by the upstream gateway.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*presenceClient]bool),
		done:    make(chan struct{}),
	}
}

// Run broadcasts the online snapshot until Stop is called.
// Intended to run as a goroutine.
func (h *PresenceHub) Run(ctx context.Context) {
	ticker := time.NewTicker(snapshotPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			h.broadcastSnapshot(ctx)
		}
	}
}

// Stop terminates the broadcast loop and closes all client connections.
func (h *PresenceHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		h.mu.Unlock()
	})
}

// ClientCount returns the number of locally connected clients.
func (h *PresenceHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcastSnapshot reads the online set from the tracker and pushes it
// to every connected client. Slow clients are dropped rather than letting
// their queue block the fan-out.
func (h *PresenceHub) broadcastSnapshot(ctx context.Context) {
	userIDs, err := h.tracker.OnlineUserIDs(ctx)
	if err != nil {
		h.logger.Warn("failed to read online set", logger.Err(err))
		return
	}

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	payload, err := json.Marshal(presenceSnapshot{
		Type:        "presence_snapshot",
		OnlineCount: len(ids),
		UserIDs:     ids,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("failed to marshal presence snapshot", logger.Err(err))
		return
	}

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			close(c.send)
			delete(h.clients, c)
		}
	}
	h.mu.Unlock()
}

// register adds a client and marks its user online.
func (h *PresenceHub) register(ctx context.Context, c *presenceClient) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	if err := h.tracker.MarkOnline(ctx, c.userID); err != nil {
		h.logger.Warn("failed to mark user online",
			logger.Err(err), logger.String("user_id", c.userID.String()))
	}
}

// unregister removes a client and marks its user offline unless the same
// user still has another live connection to this instance.
func (h *PresenceHub) unregister(c *presenceClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}

	stillConnected := false
	for other := range h.clients {
		if other.userID == c.userID {
			stillConnected = true
			break
		}
	}
	h.mu.Unlock()

	if stillConnected {
		return
	}

	// Detached from the request: the connection is already gone.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.tracker.MarkOffline(ctx, c.userID); err != nil {
		h.logger.Warn("failed to mark user offline",
			logger.Err(err), logger.String("user_id", c.userID.String()))
	}
}

// heartbeat renews the user's presence after a pong or client message.
func (h *PresenceHub) heartbeat(c *presenceClient) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.tracker.MarkOnline(ctx, c.userID); err != nil {
		h.logger.Warn("failed to renew presence",
			logger.Err(err), logger.String("user_id", c.userID.String()))
	}
}

// handlePresenceWS handles GET /ws/presence
func (s *Server) handlePresenceWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	hub := s.deps.PresenceHub
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Warn("websocket upgrade failed", logger.Err(err))
		return
	}

	client := &presenceClient{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, clientSendBuffer),
	}

	hub.register(r.Context(), client)

	go client.writePump()
	go client.readPump()
}

// readPump drains inbound frames. Every pong and every client message
// counts as a heartbeat and renews presence.
func (c *presenceClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxWSMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.heartbeat(c)
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.heartbeat(c)
	}
}

// writePump pushes queued snapshots and periodic pings to the peer.
func (c *presenceClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
