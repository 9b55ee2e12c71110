package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/playsdr/nrsync/internal/regmap"
)

// Handlers holds the HTTP API handlers.
type Handlers struct {
	status *regmap.Status
	bus    *regmap.Bus
	llr    *regmap.FIFO
	wsHub  *WSHub
}

// NewHandlers creates the API handlers over the receiver's register
// surface.
func NewHandlers(status *regmap.Status, bus *regmap.Bus, llr *regmap.FIFO) *Handlers {
	return &Handlers{
		status: status,
		bus:    bus,
		llr:    llr,
		wsHub:  NewWSHub(),
	}
}

// Hub exposes the WebSocket hub for the pipeline's event sinks.
func (h *Handlers) Hub() *WSHub { return h.wsHub }

// HandleWebSocket handles WebSocket upgrade requests.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	h.wsHub.AddClient(conn)

	// Drain the read side so pings and closes are processed.
	go func() {
		defer h.wsHub.RemoveClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// HandleStatus returns the detection status and queue occupancy.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	overflow, dropped := h.llr.Overflowed()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"detection":    h.status.Snapshot(),
		"llr_level":    h.llr.Level(),
		"llr_overflow": overflow,
		"llr_dropped":  dropped,
	})
}

// HandleRegister performs raw word-addressed bus access: GET with ?addr=,
// POST with a JSON body {"addr": N, "value": V}.
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		addr, err := strconv.ParseUint(r.URL.Query().Get("addr"), 0, 32)
		if err != nil {
			http.Error(w, fmt.Sprintf("Parse addr: %v", err), http.StatusBadRequest)
			return
		}
		val, err := h.bus.Read(uint32(addr))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"addr":  addr,
			"value": val,
		})

	case http.MethodPost:
		var req struct {
			Addr  uint32 `json:"addr"`
			Value uint32 `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("Parse request: %v", err), http.StatusBadRequest)
			return
		}
		if err := h.bus.Write(req.Addr, req.Value); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
