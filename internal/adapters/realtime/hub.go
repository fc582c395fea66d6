package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fitclub/internal/domain/event"
)

// Connection tuning constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 32
)

// EventHandler processes one inbound event from a client. A nil error means
// the event was accepted and the client receives an ack; on error the client
// gets no ack and is expected to resend.
type EventHandler func(ctx context.Context, evt event.Event) error

// ack is the acknowledgement frame sent back for every accepted event.
type ack struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// client is one websocket connection scoped to a lobby room.
type client struct {
	hub       *Hub
	conn      *websocket.Conn
	lobbyID   string
	accountID string
	send      chan []byte
}

// Hub owns all live websocket connections, grouped into rooms by lobby ID.
// Inbound events are handed to the configured EventHandler; outbound events
// are broadcast to every connection in the room.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]bool
	handler  EventHandler
	upgrader websocket.Upgrader
}

// NewHub creates a hub with no rooms. The handler receives every inbound
// event; it must be safe for concurrent calls.
func NewHub(handler EventHandler) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*client]bool),
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Cookie-based auth runs before the upgrade; same-origin
				// enforcement happens there.
				return true
			},
		},
	}
}

// HandleWS upgrades the request to a websocket and joins the lobby room.
// PRE: the caller has authenticated the account and verified lobby access
// POST: the connection is registered until the peer disconnects
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request, accountID, lobbyID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws_upgrade_failed", "error", err, "lobby_id", lobbyID)
		return
	}

	c := &client{
		hub:       h,
		conn:      conn,
		lobbyID:   lobbyID,
		accountID: accountID,
		send:      make(chan []byte, sendBuffer),
	}
	h.register(c)
	slog.Info("ws_connected", "account_id", accountID, "lobby_id", lobbyID)

	go c.writePump()
	c.readPump(r.Context())
}

// Broadcast sends the event to every connection in the lobby's room.
// Connections whose send buffer is full are dropped rather than blocking
// the broadcaster.
func (h *Hub) Broadcast(lobbyID string, evt event.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("ws_marshal_failed", "error", err, "type", evt.Type)
		return
	}

	h.mu.RLock()
	room := h.rooms[lobbyID]
	var stale []*client
	for c := range room {
		select {
		case c.send <- data:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.unregister(c)
	}
}

// CloseLobby disconnects every client in the room and removes it.
// PRE: the lobby has reached a terminal status
// POST: no connections remain for the lobby
func (h *Hub) CloseLobby(lobbyID string) {
	h.mu.Lock()
	room := h.rooms[lobbyID]
	delete(h.rooms, lobbyID)
	h.mu.Unlock()

	for c := range room {
		close(c.send)
	}
	if len(room) > 0 {
		slog.Info("ws_lobby_closed", "lobby_id", lobbyID, "connections", len(room))
	}
}

// RoomSize returns the number of live connections in a lobby's room.
func (h *Hub) RoomSize(lobbyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[lobbyID])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.lobbyID]
	if !ok {
		room = make(map[*client]bool)
		h.rooms[c.lobbyID] = room
	}
	room[c] = true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	room, ok := h.rooms[c.lobbyID]
	if ok && room[c] {
		delete(room, c)
		close(c.send)
		if len(room) == 0 {
			delete(h.rooms, c.lobbyID)
		}
	}
	h.mu.Unlock()
}

// readPump reads inbound events until the connection drops. Each accepted
// event is acked by ID so the client can stop resending it.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		slog.Info("ws_disconnected", "account_id", c.accountID, "lobby_id", c.lobbyID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("ws_read_error", "error", err, "account_id", c.accountID)
			}
			return
		}

		var evt event.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			slog.Warn("ws_bad_frame", "error", err, "account_id", c.accountID)
			continue
		}
		evt.LobbyID = c.lobbyID
		evt.SenderID = c.accountID
		evt.ReceivedAt = time.Now()

		if err := c.hub.handler(ctx, evt); err != nil {
			slog.Error("ws_event_rejected", "error", err, "type", evt.Type, "event_id", evt.ID)
			continue
		}
		if evt.ID != "" {
			c.enqueueAck(evt.ID)
		}
	}
}

func (c *client) enqueueAck(eventID string) {
	data, err := json.Marshal(ack{Type: "ack", ID: eventID})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump drains the send channel and keeps the connection alive with
// periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
