// Package agent runs the local observation loop: poll the game client,
// classify the session state, normalize snapshots and stream changes to
// the relay server.
package agent

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/matchwire/matchwire/internal/delivery"
	"github.com/matchwire/matchwire/internal/gameclient"
	"github.com/matchwire/matchwire/internal/lifecycle"
	"github.com/matchwire/matchwire/internal/snapshot"
)

// GameSource is the slice of the game client the session loop needs.
type GameSource interface {
	PUUID() string
	FetchPresences(ctx context.Context) ([]gameclient.RawPresence, error)
	FetchCurrentMatchID(ctx context.Context) (string, error)
	FetchMatchDetails(ctx context.Context, matchID string) (*gameclient.RawMatch, error)
}

// Deliverer is the delivery channel surface used by the loop. Satisfied
// by *delivery.Channel.
type Deliverer interface {
	MatchID() string
	SendUpdate(snap snapshot.MatchSnapshot) error
	AwaitAck(timeout time.Duration) bool
	Done() <-chan struct{}
	Close() error
}

type dialFunc func(ctx context.Context, baseURL, matchID, apiKey string, last delivery.LastSnapshotFunc) (Deliverer, error)

// Config holds the loop's tunables.
type Config struct {
	ServerURL string
	APIKey    string

	// PollInterval is the idle cadence; PostSendInterval applies after an
	// update was delivered, giving the server room to fan out.
	PollInterval     time.Duration
	PostSendInterval time.Duration

	AckTimeout time.Duration
}

// Session drives one agent instance. It is not safe for concurrent use;
// Run owns all state.
type Session struct {
	cfg  Config
	game GameSource
	norm *snapshot.Normalizer

	dial dialFunc
	http *http.Client

	channel      Deliverer
	currentMatch string

	// lastSent and haveSent are read by the delivery channel's listener
	// goroutine when the server requests a resend.
	mu       sync.Mutex
	lastSent snapshot.MatchSnapshot
	haveSent bool
}

func NewSession(cfg Config, game GameSource, norm *snapshot.Normalizer) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.PostSendInterval <= 0 {
		cfg.PostSendInterval = 10 * time.Second
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = delivery.DefaultAckTimeout
	}
	return &Session{
		cfg:  cfg,
		game: game,
		norm: norm,
		dial: func(ctx context.Context, baseURL, matchID, apiKey string, last delivery.LastSnapshotFunc) (Deliverer, error) {
			return delivery.Dial(ctx, baseURL, matchID, apiKey, last)
		},
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Run polls until the context is cancelled. Iteration errors are logged
// and never terminate the loop.
func (s *Session) Run(ctx context.Context) error {
	log.Printf("[Agent] Starting observation loop (poll %s)", s.cfg.PollInterval)
	defer s.shutdown()

	for {
		interval := s.cfg.PollInterval
		sent, err := s.safeIterate(ctx)
		if err != nil && ctx.Err() == nil {
			log.Printf("[Agent] Poll iteration: %v", err)
		}
		if sent {
			interval = s.cfg.PostSendInterval
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (s *Session) shutdown() {
	if s.currentMatch != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.finishMatch(ctx)
	}
}

// safeIterate converts a panicking iteration into an error so the loop
// survives it.
func (s *Session) safeIterate(ctx context.Context) (sent bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
			err = fmt.Errorf("iteration panic: %v", r)
		}
	}()
	return s.iterate(ctx)
}

// iterate runs a single poll pass and reports whether an update was sent.
func (s *Session) iterate(ctx context.Context) (bool, error) {
	presences, err := s.game.FetchPresences(ctx)
	if err != nil {
		// A vanished client ends the observed match.
		if s.currentMatch != "" {
			s.finishMatch(ctx)
		}
		return false, fmt.Errorf("fetch presences: %w", err)
	}

	state, extras := lifecycle.Classify(presences, s.game.PUUID())
	if state != lifecycle.StateIngame {
		// PREGAME never opens a channel: a dodged match must leave no
		// trace server-side.
		if s.currentMatch != "" {
			log.Printf("[Agent] Match %s over (state %s)", s.currentMatch, state)
			s.finishMatch(ctx)
		}
		return false, nil
	}

	matchID, err := s.game.FetchCurrentMatchID(ctx)
	if err == gameclient.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fetch current match: %w", err)
	}

	if s.currentMatch != "" && s.currentMatch != matchID {
		log.Printf("[Agent] Match changed %s -> %s", s.currentMatch, matchID)
		s.finishMatch(ctx)
	}

	if err := s.ensureChannel(ctx, matchID); err != nil {
		return false, fmt.Errorf("open delivery channel: %w", err)
	}

	raw, err := s.game.FetchMatchDetails(ctx, matchID)
	if err != nil {
		return false, fmt.Errorf("fetch match details: %w", err)
	}

	snap := s.norm.Normalize(ctx, raw, extras, s.game.PUUID())
	if last, ok := s.lastSnapshot(); ok && !snapshot.Differs(snap, last) {
		return false, nil
	}

	if err := s.channel.SendUpdate(snap); err != nil {
		return false, fmt.Errorf("send update: %w", err)
	}
	s.setLast(snap)

	// A missing ack is logged but never blocks the next poll.
	if !s.channel.AwaitAck(s.cfg.AckTimeout) {
		log.Printf("[Agent] No ack for match %s within %s", matchID, s.cfg.AckTimeout)
	}
	return true, nil
}

// ensureChannel dials the relay if no healthy channel exists for matchID.
func (s *Session) ensureChannel(ctx context.Context, matchID string) error {
	if s.channel != nil && s.channel.MatchID() == matchID {
		select {
		case <-s.channel.Done():
			log.Printf("[Agent] Delivery channel for %s lost, reconnecting", matchID)
			s.channel = nil
		default:
			return nil
		}
	}
	if s.channel != nil && s.channel.MatchID() != matchID {
		s.channel.Close()
		s.channel = nil
	}

	channel, err := s.dial(ctx, s.cfg.ServerURL, matchID, s.cfg.APIKey, s.lastSnapshot)
	if err != nil {
		return err
	}
	s.channel = channel
	s.currentMatch = matchID
	log.Printf("[Agent] Streaming match %s", matchID)
	return nil
}

// finishMatch tears down the channel, signals the end exactly once and
// resets per-match state.
func (s *Session) finishMatch(ctx context.Context) {
	matchID := s.currentMatch
	if matchID == "" {
		return
	}

	if s.channel != nil {
		s.channel.Close()
		s.channel = nil
	}
	if err := s.signalEnd(ctx, matchID); err != nil {
		log.Printf("[Agent] End signal for match %s: %v", matchID, err)
	}

	s.currentMatch = ""
	s.mu.Lock()
	s.haveSent = false
	s.lastSent = snapshot.MatchSnapshot{}
	s.mu.Unlock()
	s.norm.Reset()
}

// signalEnd tells the relay over REST that the match is over.
func (s *Session) signalEnd(ctx context.Context, matchID string) error {
	url := fmt.Sprintf("%s/api/active_matches/%s/end", s.cfg.ServerURL, matchID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *Session) lastSnapshot() (snapshot.MatchSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveSent {
		return snapshot.MatchSnapshot{}, false
	}
	return s.lastSent.Clone(), true
}

func (s *Session) setLast(snap snapshot.MatchSnapshot) {
	s.mu.Lock()
	s.lastSent = snap.Clone()
	s.haveSent = true
	s.mu.Unlock()
}
