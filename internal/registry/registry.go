package registry

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/matchwire/matchwire/internal/protocol"
	"github.com/matchwire/matchwire/internal/snapshot"
	"github.com/matchwire/matchwire/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Registry tracks the websocket connections attached to each live match:
// at most one producer (the agent feeding updates) and any number of
// viewers receiving the fan-out.
type Registry struct {
	store store.Store

	mu      sync.RWMutex
	matches map[string]*matchEntry
}

type matchEntry struct {
	producer *Producer
	viewers  map[*Viewer]bool
}

// Producer is the agent-side connection for a single match.
type Producer struct {
	id       string
	matchID  string
	conn     *websocket.Conn
	send     chan []byte
	registry *Registry
}

// Viewer is a read-only connection receiving broadcasts for a match.
type Viewer struct {
	id       string
	matchID  string
	conn     *websocket.Conn
	send     chan []byte
	registry *Registry
}

func New(st store.Store) *Registry {
	return &Registry{
		store:   st,
		matches: make(map[string]*matchEntry),
	}
}

// ViewerCount returns the number of viewers attached to a match.
func (r *Registry) ViewerCount(matchID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.matches[matchID]
	if !ok {
		return 0
	}
	return len(entry.viewers)
}

// HasProducer reports whether an agent is currently attached to the match.
func (r *Registry) HasProducer(matchID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.matches[matchID]
	return ok && entry.producer != nil
}

// AttachProducer registers conn as the match's producer and starts its
// pumps. A newer producer for the same match replaces the old one; the
// replaced connection is closed.
func (r *Registry) AttachProducer(matchID string, conn *websocket.Conn) *Producer {
	p := &Producer{
		id:       uuid.NewString(),
		matchID:  matchID,
		conn:     conn,
		send:     make(chan []byte, 16),
		registry: r,
	}

	r.mu.Lock()
	entry := r.ensureEntry(matchID)
	old := entry.producer
	entry.producer = p
	r.mu.Unlock()

	if old != nil {
		log.Printf("[Registry] Replacing producer for match %s", matchID)
		old.conn.Close()
	}

	go p.writePump()
	go p.readPump()
	return p
}

// AttachViewer registers conn as a viewer, pushes the persisted record as
// an initial update and nudges the producer to resend its latest snapshot.
func (r *Registry) AttachViewer(ctx context.Context, matchID string, conn *websocket.Conn) *Viewer {
	v := &Viewer{
		id:       uuid.NewString(),
		matchID:  matchID,
		conn:     conn,
		send:     make(chan []byte, 16),
		registry: r,
	}

	r.mu.Lock()
	entry := r.ensureEntry(matchID)
	entry.viewers[v] = true
	// Best effort: ask the producer for fresh data so the viewer does not
	// wait a full poll cycle. The send happens under the lock so the
	// channel cannot be closed out from under us.
	if entry.producer != nil {
		if payload, err := json.Marshal(protocol.NewRequestData(matchID)); err == nil {
			select {
			case entry.producer.send <- payload:
			default:
			}
		}
	}
	r.mu.Unlock()

	go v.writePump()
	go v.readPump()

	r.sendInitialState(ctx, v)
	return v
}

func (r *Registry) ensureEntry(matchID string) *matchEntry {
	entry, ok := r.matches[matchID]
	if !ok {
		entry = &matchEntry{viewers: make(map[*Viewer]bool)}
		r.matches[matchID] = entry
	}
	return entry
}

func (r *Registry) sendInitialState(ctx context.Context, v *Viewer) {
	record, err := r.store.Get(ctx, v.matchID)
	if store.IsNotFound(err) {
		return
	}
	if err != nil {
		log.Printf("[Registry] Load match %s for viewer: %v", v.matchID, err)
		return
	}

	env, err := protocol.NewMatchUpdate(v.matchID, record)
	if err != nil {
		log.Printf("[Registry] Encode initial state for match %s: %v", v.matchID, err)
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}

	r.mu.RLock()
	if entry, ok := r.matches[v.matchID]; ok && entry.viewers[v] {
		select {
		case v.send <- payload:
		default:
		}
	}
	r.mu.RUnlock()
}

// broadcast fans payload out to every viewer of the match. Viewers with a
// full send buffer are skipped rather than blocked on.
func (r *Registry) broadcast(matchID string, payload []byte) {
	r.mu.RLock()
	entry, ok := r.matches[matchID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	for v := range entry.viewers {
		select {
		case v.send <- payload:
		default:
		}
	}
	r.mu.RUnlock()
}

// detachProducer removes p if it is still the match's current producer.
// A producer replaced by a newer connection leaves the newer one in place.
func (r *Registry) detachProducer(p *Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.matches[p.matchID]
	if !ok {
		return
	}
	if entry.producer == p {
		entry.producer = nil
		close(p.send)
		r.dropIfEmpty(p.matchID, entry)
	}
}

func (r *Registry) detachViewer(v *Viewer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.matches[v.matchID]
	if !ok {
		return
	}
	if entry.viewers[v] {
		delete(entry.viewers, v)
		close(v.send)
		r.dropIfEmpty(v.matchID, entry)
	}
}

func (r *Registry) dropIfEmpty(matchID string, entry *matchEntry) {
	if entry.producer == nil && len(entry.viewers) == 0 {
		delete(r.matches, matchID)
	}
}

func (p *Producer) readPump() {
	defer func() {
		p.registry.detachProducer(p)
		p.conn.Close()
	}()

	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[Registry] Producer read error for match %s: %v", p.matchID, err)
			}
			return
		}

		env, err := protocol.Decode(message)
		if err != nil {
			log.Printf("[Registry] Ignoring malformed producer message for match %s: %v", p.matchID, err)
			continue
		}

		switch env.Type {
		case protocol.TypeMatchUpdate:
			p.handleUpdate(env)
		default:
			// Producers only send updates; anything else is noise.
		}
	}
}

func (p *Producer) handleUpdate(env protocol.Envelope) {
	var snap snapshot.MatchSnapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		log.Printf("[Registry] Ignoring undecodable update for match %s: %v", p.matchID, err)
		return
	}
	if snap.MatchID == "" {
		snap.MatchID = p.matchID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	created, err := p.registry.store.Upsert(ctx, snap)
	if err != nil {
		log.Printf("[Registry] Persist update for match %s: %v", p.matchID, err)
		return
	}
	if created {
		log.Printf("[Registry] New live match %s (%s, %s)", snap.MatchID, snap.Map, snap.Mode)
	}

	record, err := p.registry.store.Get(ctx, snap.MatchID)
	if err != nil {
		log.Printf("[Registry] Load match %s after update: %v", p.matchID, err)
		return
	}

	out, err := protocol.NewMatchUpdate(p.matchID, record)
	if err != nil {
		log.Printf("[Registry] Encode broadcast for match %s: %v", p.matchID, err)
		return
	}
	if payload, err := json.Marshal(out); err == nil {
		p.registry.broadcast(p.matchID, payload)
	}

	select {
	case p.send <- []byte(protocol.AckToken):
	default:
	}
}

func (p *Producer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case message, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (v *Viewer) readPump() {
	defer func() {
		v.registry.detachViewer(v)
		v.conn.Close()
	}()

	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Viewers are read-only; drain anything they send so pings keep flowing.
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (v *Viewer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case message, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
