package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Message types exchanged between agent, server and viewers.
const (
	TypeMatchUpdate = "match_update"
	TypeRequestData = "request_data"
	TypeAck         = "ack"
)

// AckToken is the literal acknowledgment some producers send instead of a
// structured {type:"ack"} envelope. Both encodings must be accepted.
const AckToken = "ACK"

// Envelope is the wire message for agent→server and server→viewer traffic.
// Data carries the snapshot payload for match_update messages and is empty
// for request_data and ack.
type Envelope struct {
	Type      string          `json:"type"`
	MatchID   string          `json:"match_uuid,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// ViolationError indicates a malformed message on the wire. Receivers log
// and ignore these; they never tear down the connection.
type ViolationError struct {
	Reason string
}

func (e ViolationError) Error() string {
	return fmt.Sprintf("protocol: %s", e.Reason)
}

// NewMatchUpdate builds a match_update envelope carrying the given payload.
func NewMatchUpdate(matchID string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("protocol: encode match_update payload: %w", err)
	}
	return Envelope{
		Type:      TypeMatchUpdate,
		MatchID:   matchID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewRequestData builds a request_data envelope asking the producer to
// resend its last snapshot for the match.
func NewRequestData(matchID string) Envelope {
	return Envelope{
		Type:      TypeRequestData,
		MatchID:   matchID,
		Timestamp: time.Now().UTC(),
	}
}

// NewAck builds a structured acknowledgment envelope.
func NewAck(matchID string) Envelope {
	return Envelope{
		Type:      TypeAck,
		MatchID:   matchID,
		Timestamp: time.Now().UTC(),
	}
}

// IsAck reports whether raw is an acknowledgment in either accepted
// encoding: the literal "ACK" token or a {type:"ack"} envelope.
func IsAck(raw []byte) bool {
	if bytes.Equal(bytes.TrimSpace(raw), []byte(AckToken)) {
		return true
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	return env.Type == TypeAck
}

// Decode parses a wire message. The literal ack token is normalised into a
// {type:"ack"} envelope so callers can switch on Type alone.
func Decode(raw []byte) (Envelope, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte(AckToken)) {
		return Envelope{Type: TypeAck}, nil
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, ViolationError{Reason: fmt.Sprintf("invalid message: %v", err)}
	}
	if env.Type == "" {
		return Envelope{}, ViolationError{Reason: "message missing type"}
	}
	return env, nil
}
