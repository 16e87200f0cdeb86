// Package realtime pushes appointment events to the doctor's open calendars
// over WebSockets. Each connection belongs to one doctor and only receives
// that doctor's events.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/famalink/telemed-api/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type Client struct {
	ID       string
	DoctorID uuid.UUID
	Send     chan []byte
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID]map[*Client]struct{}
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
}

// NewHub accepts upgrades from allowedOrigins; an empty list or "*" allows any.
func NewHub(allowedOrigins []string, m *metrics.Metrics) *Hub {
	h := &Hub{
		clients: make(map[uuid.UUID]map[*Client]struct{}),
		metrics: m,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.DoctorID] == nil {
		h.clients[client.DoctorID] = make(map[*Client]struct{})
	}
	h.clients[client.DoctorID][client] = struct{}{}
	if h.metrics != nil {
		h.metrics.WebsocketClients.Inc()
	}
}

// Unregister removes the client and closes its Send channel. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.clients[client.DoctorID]
	if !ok {
		return
	}
	if _, ok := subscribers[client]; !ok {
		return
	}
	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(h.clients, client.DoctorID)
	}
	close(client.Send)
	if h.metrics != nil {
		h.metrics.WebsocketClients.Dec()
	}
}

// Broadcast sends event to every connection of doctorID. Slow clients whose
// buffer is full miss the event.
func (h *Hub) Broadcast(doctorID uuid.UUID, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal realtime event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[doctorID] {
		select {
		case client.Send <- data:
		default:
			log.Warn().Str("client_id", client.ID).Msg("Realtime client buffer full, event dropped")
		}
	}
}

func (h *Hub) ClientCount(doctorID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[doctorID])
}

// Serve upgrades the request and pumps events to the doctor until the
// connection closes.
func (h *Hub) Serve(c *gin.Context, doctorID uuid.UUID) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		DoctorID: doctorID,
		Send:     make(chan []byte, sendBuffer),
	}
	h.Register(client)

	go h.writePump(client, ws)
	go h.readPump(client, ws)
}

// readPump only handles control frames; clients do not send data.
func (h *Hub) readPump(client *Client, ws *websocket.Conn) {
	defer func() {
		h.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *Client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
