package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matchwire/matchwire/internal/protocol"
	"github.com/matchwire/matchwire/internal/registry"
	"github.com/matchwire/matchwire/internal/snapshot"
	"github.com/matchwire/matchwire/internal/store"
)

const testKey = "agent-test-key"

func newTestServer(t *testing.T) (*store.Memory, *httptest.Server) {
	t.Helper()
	st := store.NewMemory()
	hash, err := HashAPIKey(testKey)
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	srv := New(st, registry.New(st), hash)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return st, ts
}

func seedMatch(t *testing.T, st *store.Memory, matchID string) {
	t.Helper()
	if _, err := st.Upsert(context.Background(), snapshot.MatchSnapshot{
		MatchID: matchID, Map: "Ascent", Mode: "Competitive", State: "INGAME",
	}); err != nil {
		t.Fatalf("seed match: %v", err)
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestListActive(t *testing.T) {
	st, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/active_matches")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var records []store.LiveMatchRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode empty list: %v", err)
	}
	resp.Body.Close()
	if len(records) != 0 {
		t.Fatalf("expected empty list, got %d records", len(records))
	}

	seedMatch(t, st, "m1")
	resp, err = http.Get(ts.URL + "/api/active_matches")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(records) != 1 || records[0].MatchID != "m1" {
		t.Fatalf("unexpected list: %+v", records)
	}
}

func TestGetMatchNotFound(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/active_matches/ghost")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpsertRequiresKey(t *testing.T) {
	_, ts := newTestServer(t)
	body := bytes.NewBufferString(`{"match_uuid":"m1"}`)
	resp, err := http.Post(ts.URL+"/api/active_matches", "application/json", body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", resp.StatusCode)
	}
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	_, ts := newTestServer(t)

	post := func(payload string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/active_matches", strings.NewReader(payload))
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+testKey)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		return resp
	}

	resp := post(`{"match_uuid":"m1","game_map":"Bind","state":"INGAME"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 on create, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = post(`{"match_uuid":"m1","game_map":"Bind","state":"INGAME","party_owner_score":4}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d", resp.StatusCode)
	}
	var record store.LiveMatchRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.OwnerScore != 4 {
		t.Fatalf("update not applied: %+v", record)
	}
}

func TestEndMatch(t *testing.T) {
	st, ts := newTestServer(t)
	seedMatch(t, st, "m1")

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/active_matches/m1/end", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	record, err := st.Get(context.Background(), "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.EndedAt == nil {
		t.Fatalf("match not ended")
	}
}

func TestAgentSocketAuth(t *testing.T) {
	_, ts := newTestServer(t)
	base := "ws" + strings.TrimPrefix(ts.URL, "http")

	// Wrong key is rejected during the handshake.
	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/agent/m1?key=wrong", nil)
	if err == nil {
		t.Fatalf("expected handshake failure with wrong key")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/agent/m1?key="+testKey, nil)
	if err != nil {
		t.Fatalf("dial with valid key: %v", err)
	}
	defer conn.Close()

	env, err := protocol.NewMatchUpdate("m1", snapshot.MatchSnapshot{MatchID: "m1", Map: "Haven", State: "INGAME"})
	if err != nil {
		t.Fatalf("build update: %v", err)
	}
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("write update: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if !protocol.IsAck(raw) {
		t.Fatalf("expected ack, got %s", raw)
	}
}

func TestLiveSocketInitialState(t *testing.T) {
	st, ts := newTestServer(t)
	seedMatch(t, st, "m1")

	base := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/live/m1", nil)
	if err != nil {
		t.Fatalf("dial live socket: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	env, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("decode initial state: %v", err)
	}
	if env.Type != protocol.TypeMatchUpdate {
		t.Fatalf("expected match_update, got %q", env.Type)
	}
}

func TestVerifyAPIKey(t *testing.T) {
	hash, err := HashAPIKey("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyAPIKey(hash, "secret") {
		t.Fatalf("valid key rejected")
	}
	if VerifyAPIKey(hash, "other") {
		t.Fatalf("wrong key accepted")
	}
	if VerifyAPIKey("", "secret") || VerifyAPIKey(hash, "") {
		t.Fatalf("empty hash or key accepted")
	}
}
