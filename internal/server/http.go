package server

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP control and status surface of the receiver.
type Server struct {
	mux     *http.ServeMux
	handler *Handlers
	addr    string
}

// NewServer creates the server. gatherer feeds the /metrics endpoint.
func NewServer(addr string, handler *Handlers, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		handler: handler,
		addr:    addr,
	}
	s.setupRoutes(gatherer)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	// API routes
	s.mux.HandleFunc("/api/status", s.handler.HandleStatus)
	s.mux.HandleFunc("/api/register", s.handler.HandleRegister)

	// WebSocket
	s.mux.HandleFunc("/ws", s.handler.HandleWebSocket)

	// Prometheus
	s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Start starts the HTTP server and blocks.
func (s *Server) Start() error {
	log.Printf("Starting server on %s", s.addr)
	return http.ListenAndServe(s.addr, s.mux)
}
