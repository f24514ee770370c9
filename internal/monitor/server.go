// Package monitor exposes a read-only observability surface for the
// engine: JSON snapshots over HTTP and a live stats feed over WebSocket.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"coalescer/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// StatsSource is the query surface the monitor reads from
type StatsSource interface {
	GetStats() engine.Stats
	GetPendingRequests() []engine.PendingInfo
}

// Server serves the engine stats over HTTP and WebSocket
type Server struct {
	source       StatsSource
	pushInterval time.Duration
	httpServer   *http.Server
	logger       zerolog.Logger
}

// New creates a new monitor server
func New(source StatsSource, host string, port int, pushInterval time.Duration, logger zerolog.Logger) *Server {
	s := &Server{
		source:       source,
		pushInterval: pushInterval,
		logger:       logger.With().Str("component", "monitor").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/pending", s.handlePending)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: mux,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("monitor server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("monitor server failed")
		}
	}()
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleStats serves a one-shot stats snapshot
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.source.GetStats()); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode stats")
	}
}

// handlePending serves the currently pending requests
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pending := s.source.GetPendingRequests()
	if pending == nil {
		pending = []engine.PendingInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(pending); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode pending requests")
	}
}

// handleWS upgrades the connection and pushes a stats snapshot on every
// push interval until the client goes away
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}
	defer conn.Close()

	s.logger.Info().Str("remoteAddr", r.RemoteAddr).Msg("new stats feed connection")

	// Reader goroutine: we never expect messages, but reading is the only
	// way to notice the peer closing
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			s.logger.Debug().Str("remoteAddr", r.RemoteAddr).Msg("stats feed closed by peer")
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.source.GetStats()); err != nil {
				s.logger.Debug().Err(err).Str("remoteAddr", r.RemoteAddr).Msg("stats feed write failed")
				return
			}
		}
	}
}
