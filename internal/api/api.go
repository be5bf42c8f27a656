// Package api provides the HTTP control surface: status, positions,
// trades, scan results, start/stop/configure, manual orders, and the
// WebSocket event stream.
package api

import (
	"context"
	"log"
	"net/http"

	"coinhero/internal/engine"
	"coinhero/internal/gateway"
	"coinhero/internal/model"
	"coinhero/internal/position"
)

// Server wires the HTTP handlers over the engine and its stores.
type Server struct {
	eng    *engine.Engine
	posmgr *position.Manager
	trades model.TradeStore
	hub    *gateway.Hub

	srv *http.Server
}

// NewServer builds the API server. hub may be nil to disable the
// WebSocket stream.
func NewServer(addr string, eng *engine.Engine, posmgr *position.Manager,
	trades model.TradeStore, hub *gateway.Hub) *Server {

	s := &Server{eng: eng, posmgr: posmgr, trades: trades, hub: hub}
	s.srv = &http.Server{Addr: addr, Handler: s.Routes()}
	return s
}

// Routes sets up the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/positions", s.handlePositions)
	mux.HandleFunc("/api/v1/trades", s.handleTrades)
	mux.HandleFunc("/api/v1/scan", s.handleScan)
	mux.HandleFunc("/api/v1/start", s.handleStart)
	mux.HandleFunc("/api/v1/stop", s.handleStop)
	mux.HandleFunc("/api/v1/configure", s.handleConfigure)
	mux.HandleFunc("/api/v1/orders", s.handleOrders)

	if s.hub != nil {
		mux.HandleFunc("/api/v1/stream", s.hub.HandleWS)
		mux.HandleFunc("/api/v1/events/missed", s.hub.HandleMissed)
	}
	return mux
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[api] server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
