package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridrace/gridrace/store"
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

// firehose is the subscription key for clients watching every track.
const firehose = ""

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		return true
	},
}

// Message is the wire envelope pushed to subscribers.
type Message struct {
	Event string            `json:"event"`
	Race  *store.RaceRecord `json:"race,omitempty"`
	Data  interface{}       `json:"data,omitempty"`
}

// Client is one WebSocket subscriber.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	trackID string
}

// Hub maintains the set of active clients and pushes race results to them.
// Clients subscribe to one track id, or to everything.
type Hub struct {
	// Registered clients by track id; the empty id is the firehose.
	tracks map[string]map[*Client]bool

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		tracks:     make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ServeWS upgrades an HTTP request to a subscription. An empty trackID
// subscribes to every race.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, trackID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		trackID: trackID,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// RaceCompleted pushes a finished race to the track's subscribers and the
// firehose. It is the service's Notifier hook; delivery happens on the hub
// loop via the broadcast channel, never on the race path.
func (h *Hub) RaceCompleted(rec *store.RaceRecord) {
	h.broadcast <- &Message{Event: "race_completed", Race: rec}
}

func (h *Hub) registerClient(client *Client) {
	if h.tracks[client.trackID] == nil {
		h.tracks[client.trackID] = make(map[*Client]bool)
	}
	h.tracks[client.trackID][client] = true

	log.Printf("Client subscribed to track %q (subscribers: %d)",
		client.trackID, len(h.tracks[client.trackID]))
}

func (h *Hub) unregisterClient(client *Client) {
	if clients, ok := h.tracks[client.trackID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			if len(clients) == 0 {
				delete(h.tracks, client.trackID)
			}

			log.Printf("Client left track %q (remaining: %d)", client.trackID, len(clients))
		}
	}
}

func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	trackID := firehose
	if message.Race != nil {
		trackID = message.Race.TrackID
	}
	h.sendTo(trackID, data)
	if trackID != firehose {
		h.sendTo(firehose, data)
	}
}

func (h *Hub) sendTo(trackID string, data []byte) {
	clients, ok := h.tracks[trackID]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, drop it.
			h.unregisterClient(client)
		}
	}
}

// readPump drains the connection to keep control frames flowing. Incoming
// payloads are ignored; subscriptions are read-only.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message.
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
