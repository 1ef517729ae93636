package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matchwire/matchwire/internal/protocol"
	"github.com/matchwire/matchwire/internal/snapshot"
)

type serverConn struct {
	conns chan *websocket.Conn
	srv   *httptest.Server
}

// newWSServer accepts agent connections and hands them to the test.
func newWSServer(t *testing.T) *serverConn {
	t.Helper()
	sc := &serverConn{conns: make(chan *websocket.Conn, 1)}
	upgrader := websocket.Upgrader{}
	sc.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		sc.conns <- conn
	}))
	t.Cleanup(sc.srv.Close)
	return sc
}

func (sc *serverConn) wsURL() string {
	return "ws" + strings.TrimPrefix(sc.srv.URL, "http")
}

func (sc *serverConn) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-sc.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw a connection")
		return nil
	}
}

func testSnap(score int) snapshot.MatchSnapshot {
	return snapshot.MatchSnapshot{MatchID: "abc", Map: "Ascent", OwnerScore: score}
}

func TestSendAndAck(t *testing.T) {
	sc := newWSServer(t)
	ch, err := Dial(context.Background(), sc.wsURL(), "abc", "", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()
	server := sc.accept(t)
	defer server.Close()

	if err := ch.SendUpdate(testSnap(3)); err != nil {
		t.Fatalf("send: %v", err)
	}

	_, raw, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	env, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != protocol.TypeMatchUpdate || env.MatchID != "abc" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	// Literal token encoding must be accepted as an ack.
	if err := server.WriteMessage(websocket.TextMessage, []byte(protocol.AckToken)); err != nil {
		t.Fatalf("server write ack: %v", err)
	}
	if !ch.AwaitAck(time.Second) {
		t.Error("expected ack to be delivered")
	}
}

func TestAwaitAckTimesOutAgainstSilentServer(t *testing.T) {
	sc := newWSServer(t)
	ch, err := Dial(context.Background(), sc.wsURL(), "abc", "", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()
	server := sc.accept(t)
	defer server.Close()

	if err := ch.SendUpdate(testSnap(1)); err != nil {
		t.Fatalf("send: %v", err)
	}

	start := time.Now()
	if ch.AwaitAck(200 * time.Millisecond) {
		t.Fatal("expected timeout, got ack")
	}
	elapsed := time.Since(start)
	if elapsed < 150*time.Millisecond || elapsed > time.Second {
		t.Errorf("ack wait took %v, want ~200ms hard timeout", elapsed)
	}
}

func TestRequestDataTriggersResend(t *testing.T) {
	sc := newWSServer(t)
	last := testSnap(7)
	ch, err := Dial(context.Background(), sc.wsURL(), "abc", "", func() (snapshot.MatchSnapshot, bool) {
		return last, true
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()
	server := sc.accept(t)
	defer server.Close()

	req := protocol.NewRequestData("abc")
	payload, _ := json.Marshal(req)
	if err := server.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("server write: %v", err)
	}

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("expected resend, read failed: %v", err)
	}
	env, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("decode resend: %v", err)
	}
	var snap snapshot.MatchSnapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode resent snapshot: %v", err)
	}
	if snap.OwnerScore != 7 {
		t.Errorf("resent score = %d, want 7", snap.OwnerScore)
	}
}

func TestMalformedMessageDoesNotKillListener(t *testing.T) {
	sc := newWSServer(t)
	ch, err := Dial(context.Background(), sc.wsURL(), "abc", "", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()
	server := sc.accept(t)
	defer server.Close()

	if err := server.WriteMessage(websocket.TextMessage, []byte("{garbage")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	if err := server.WriteMessage(websocket.TextMessage, []byte(protocol.AckToken)); err != nil {
		t.Fatalf("server write ack: %v", err)
	}
	if !ch.AwaitAck(time.Second) {
		t.Error("listener should survive malformed traffic and still deliver acks")
	}
}

func TestCloseTerminatesListener(t *testing.T) {
	sc := newWSServer(t)
	ch, err := Dial(context.Background(), sc.wsURL(), "abc", "", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	server := sc.accept(t)
	defer server.Close()

	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not terminate after Close")
	}
	if err := ch.SendUpdate(testSnap(1)); err == nil {
		t.Error("send after close should fail")
	}
}

func TestServerDisconnectClosesDone(t *testing.T) {
	sc := newWSServer(t)
	ch, err := Dial(context.Background(), sc.wsURL(), "abc", "", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()
	server := sc.accept(t)
	server.Close()

	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not observe server disconnect")
	}
}
