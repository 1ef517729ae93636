// Package server exposes the relay daemon's HTTP surface: the agent and
// viewer websocket endpoints plus a small REST API over live matches.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matchwire/matchwire/internal/registry"
	"github.com/matchwire/matchwire/internal/store"
)

// Server wires the connection registry and match store into HTTP handlers.
type Server struct {
	store      store.Store
	registry   *registry.Registry
	apiKeyHash string

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates a Server. apiKeyHash is the bcrypt hash of the shared agent
// key; empty disables auth.
func New(st store.Store, reg *registry.Registry, apiKeyHash string) *Server {
	return &Server{
		store:      st,
		registry:   reg,
		apiKeyHash: apiKeyHash,
		upgrader: websocket.Upgrader{
			// Agents and viewers are not browsers; origin checks add nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws/agent/{matchID}", s.requireKey(s.handleAgentSocket))
	mux.HandleFunc("GET /ws/live/{matchID}", s.handleLiveSocket)
	mux.HandleFunc("GET /api/active_matches", s.handleListActive)
	mux.HandleFunc("GET /api/active_matches/{matchID}", s.handleGetMatch)
	mux.HandleFunc("POST /api/active_matches", s.requireKey(s.handleUpsertMatch))
	mux.HandleFunc("PATCH /api/active_matches/{matchID}/end", s.requireKey(s.handleEndMatch))
	return mux
}

// ListenAndServe runs the HTTP server on addr until the context is
// cancelled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[APIServer] Listening on %s", addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
