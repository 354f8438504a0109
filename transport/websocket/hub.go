package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Envelope is the wire format: an event name plus an event-specific
// payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// HandlerFunc processes one inbound event from one connection.
type HandlerFunc func(connID string, data json.RawMessage)

// Client represents one WebSocket connection with its assigned identity.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub maintains the set of live connections, dispatches inbound events,
// and delivers outbound events by connection id.
type Hub struct {
	clients      map[string]*Client
	handlers     map[string]HandlerFunc
	onConnect    []func(connID string)
	onDisconnect []func(connID string)
	mu           sync.RWMutex
}

// NewHub creates a new hub.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers the handler for an inbound event kind. Registration
// happens at wiring time, before the hub serves connections.
func (h *Hub) Handle(event string, fn HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[event] = fn
}

// OnConnect registers a callback invoked after a connection is registered
// and able to receive events.
func (h *Hub) OnConnect(fn func(connID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = append(h.onConnect, fn)
}

// OnDisconnect registers a callback invoked after a connection is gone.
func (h *Hub) OnDisconnect(fn func(connID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDisconnect = append(h.onDisconnect, fn)
}

// ServeWS upgrades the request, assigns a fresh connection identity, and
// starts the client's pumps. The connect callbacks run once the client can
// already receive sends.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		id:   uuid.NewString(),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	connectFns := h.onConnect
	h.mu.Unlock()

	log.Printf("Connection %s registered (total connections: %d)", client.id, total)

	go client.writePump()
	for _, fn := range connectFns {
		fn(client.id)
	}
	go client.readPump()
}

// Send delivers one event to one connection. Unknown ids are dropped
// silently: the connection may have legitimately gone away between the
// caller's lookup and delivery.
func (h *Hub) Send(connID, event string, payload any) {
	data, err := encodeEnvelope(event, payload)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case client.send <- data:
	default:
		// Backed-up client. Closing the socket lets its readPump run the
		// normal disconnect path on its own goroutine.
		log.Printf("Connection %s send buffer full, closing", connID)
		client.conn.Close()
	}
}

// Broadcast delivers one event to a group of connections in order.
func (h *Hub) Broadcast(connIDs []string, event string, payload any) {
	for _, connID := range connIDs {
		h.Send(connID, event, payload)
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// removeClient unregisters a client and fires the disconnect callbacks.
// Safe to call more than once for the same client.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	remaining := len(h.clients)
	disconnectFns := h.onDisconnect
	h.mu.Unlock()

	log.Printf("Connection %s unregistered (remaining connections: %d)", c.id, remaining)
	for _, fn := range disconnectFns {
		fn(c.id)
	}
}

func (h *Hub) handler(event string) HandlerFunc {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.handlers[event]
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// readPump pumps messages from the WebSocket connection into the dispatch
// table.
func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error on %s: %v", c.id, err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("Malformed message from %s: %v", c.id, err)
			continue
		}

		fn := c.hub.handler(env.Event)
		if fn == nil {
			log.Printf("Unknown event %q from %s", env.Event, c.id)
			continue
		}
		fn(c.id, env.Data)
	}
}

// writePump pumps messages from the send channel to the WebSocket
// connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
