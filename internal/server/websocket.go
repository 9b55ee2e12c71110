package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// EventPayload reports a pipeline event.
type EventPayload struct {
	Kind      string  `json:"kind"`
	Timestamp uint64  `json:"timestamp"`
	Nid2      int     `json:"n_id_2,omitempty"`
	Nid       int     `json:"n_id,omitempty"`
	Ibar      int     `json:"ibar_ssb,omitempty"`
	CFOHz     float64 `json:"cfo_hz,omitempty"`
	Power     uint64  `json:"power,omitempty"`
}

// LLRPayload carries one demapped block.
type LLRPayload struct {
	SSBIndex int    `json:"ssb_index"`
	LLRs     []int8 `json:"llrs"`
}

// WSHub manages WebSocket connections.
type WSHub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[*websocket.Conn]bool),
	}
}

// AddClient registers a new WebSocket connection.
func (h *WSHub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	log.Printf("WebSocket client connected (%d total)", len(h.clients))
}

// RemoveClient removes a WebSocket connection.
func (h *WSHub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close()
	log.Printf("WebSocket client disconnected (%d remaining)", len(h.clients))
}

// Broadcast sends a message to all connected clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket marshal error: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.clients {
		err := conn.WriteMessage(websocket.TextMessage, data)
		if err != nil {
			log.Printf("WebSocket write error: %v", err)
			go h.RemoveClient(conn)
		}
	}
}

// BroadcastEvent sends a pipeline event to all clients.
func (h *WSHub) BroadcastEvent(p EventPayload) {
	h.Broadcast(WSMessage{Type: "event", Payload: p})
}

// BroadcastLLRs sends a demapped soft-bit block to all clients.
func (h *WSHub) BroadcastLLRs(ssbIndex int, llrs []int8) {
	h.Broadcast(WSMessage{Type: "llrs", Payload: LLRPayload{SSBIndex: ssbIndex, LLRs: llrs}})
}

// BroadcastLog sends a log message to all clients.
func (h *WSHub) BroadcastLog(level, message string) {
	h.Broadcast(WSMessage{
		Type: "log",
		Payload: map[string]string{
			"level":   level,
			"message": message,
		},
	})
}
