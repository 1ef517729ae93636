package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/matchwire/matchwire/internal/snapshot"
	"github.com/matchwire/matchwire/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAgentSocket upgrades the producer connection for a match and hands
// it to the registry.
func (s *Server) handleAgentSocket(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("matchID")
	if matchID == "" {
		writeError(w, http.StatusBadRequest, "missing match id")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[APIServer] Agent upgrade for match %s: %v", matchID, err)
		return
	}

	log.Printf("[APIServer] Agent connected for match %s", matchID)
	s.registry.AttachProducer(matchID, conn)
}

// handleLiveSocket upgrades a viewer connection. Viewers are read-only and
// unauthenticated.
func (s *Server) handleLiveSocket(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("matchID")
	if matchID == "" {
		writeError(w, http.StatusBadRequest, "missing match id")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[APIServer] Viewer upgrade for match %s: %v", matchID, err)
		return
	}

	s.registry.AttachViewer(r.Context(), matchID, conn)
}

func (s *Server) handleListActive(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListActive(r.Context())
	if err != nil {
		log.Printf("[APIServer] List active matches: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list matches")
		return
	}
	if records == nil {
		records = []store.LiveMatchRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("matchID")
	record, err := s.store.Get(r.Context(), matchID)
	if store.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		log.Printf("[APIServer] Get match %s: %v", matchID, err)
		writeError(w, http.StatusInternalServerError, "failed to load match")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleUpsertMatch stores a snapshot delivered over REST instead of the
// agent websocket.
func (s *Server) handleUpsertMatch(w http.ResponseWriter, r *http.Request) {
	var snap snapshot.MatchSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot payload")
		return
	}
	if snap.MatchID == "" {
		writeError(w, http.StatusBadRequest, "snapshot missing match_uuid")
		return
	}

	created, err := s.store.Upsert(r.Context(), snap)
	if err != nil {
		log.Printf("[APIServer] Upsert match %s: %v", snap.MatchID, err)
		writeError(w, http.StatusInternalServerError, "failed to store match")
		return
	}

	record, err := s.store.Get(r.Context(), snap.MatchID)
	if err != nil {
		log.Printf("[APIServer] Load match %s after upsert: %v", snap.MatchID, err)
		writeError(w, http.StatusInternalServerError, "failed to load match")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, record)
}

// handleEndMatch marks a match ended. Agents call this once when the game
// client returns to the menus.
func (s *Server) handleEndMatch(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("matchID")
	if err := s.store.MarkEnded(r.Context(), matchID, time.Now().UTC()); err != nil {
		log.Printf("[APIServer] End match %s: %v", matchID, err)
		writeError(w, http.StatusInternalServerError, "failed to end match")
		return
	}
	log.Printf("[APIServer] Match %s marked ended", matchID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}
