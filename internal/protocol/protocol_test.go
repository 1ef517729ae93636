package protocol

import (
	"errors"
	"testing"
)

func TestDecodeLiteralAck(t *testing.T) {
	env, err := Decode([]byte("ACK"))
	if err != nil {
		t.Fatalf("decode literal ack: %v", err)
	}
	if env.Type != TypeAck {
		t.Errorf("expected ack type, got %q", env.Type)
	}
}

func TestDecodeStructuredAck(t *testing.T) {
	env, err := Decode([]byte(`{"type":"ack","match_uuid":"abc"}`))
	if err != nil {
		t.Fatalf("decode structured ack: %v", err)
	}
	if env.Type != TypeAck || env.MatchID != "abc" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestIsAckBothEncodings(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"ACK", true},
		{" ACK\n", true},
		{`{"type":"ack"}`, true},
		{`{"type":"match_update","match_uuid":"abc"}`, false},
		{"nonsense", false},
	}
	for _, tc := range cases {
		if got := IsAck([]byte(tc.raw)); got != tc.want {
			t.Errorf("IsAck(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	var violation ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ViolationError, got %v", err)
	}
}

func TestDecodeMissingType(t *testing.T) {
	_, err := Decode([]byte(`{"match_uuid":"abc"}`))
	var violation ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ViolationError, got %v", err)
	}
}

func TestMatchUpdateRoundTrip(t *testing.T) {
	env, err := NewMatchUpdate("abc", map[string]int{"score": 3})
	if err != nil {
		t.Fatalf("build match_update: %v", err)
	}
	if env.Type != TypeMatchUpdate || env.MatchID != "abc" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if env.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}
