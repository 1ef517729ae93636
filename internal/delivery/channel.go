package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matchwire/matchwire/internal/protocol"
	"github.com/matchwire/matchwire/internal/snapshot"
)

const (
	// DefaultAckTimeout bounds the wait for an application-level ack.
	// Missing an ack is logged, never fatal.
	DefaultAckTimeout = 2 * time.Second

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// ErrClosed is returned by Send when the channel has been closed or the
// transport has failed. The agent reacts by clearing its channel reference
// and reconnecting on the next cycle.
var ErrClosed = errors.New("delivery: channel closed")

// LastSnapshotFunc returns the most recently sent snapshot for the match,
// used to answer request_data without a round trip to the game client.
// It is called from the listener goroutine; implementations must be safe
// for concurrent use with the sender.
type LastSnapshotFunc func() (snapshot.MatchSnapshot, bool)

// Channel is the message channel between one producer and the server for
// a single match. Delivery confidence comes from the acknowledgment
// protocol layered on top, not the transport: Send is fire-and-forget and
// AwaitAck consumes the bounded ack queue fed by the listener goroutine.
type Channel struct {
	matchID  string
	conn     *websocket.Conn
	lastSent LastSnapshotFunc

	// Single-slot ack queue: one in-flight update awaits one ack.
	acks chan struct{}
	done chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial opens a delivery channel for matchID against the server base URL
// (ws:// or http://) and starts its listener goroutine.
func Dial(ctx context.Context, baseURL, matchID, apiKey string, lastSent LastSnapshotFunc) (*Channel, error) {
	endpoint, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws/agent/" + matchID)
	if err != nil {
		return nil, fmt.Errorf("delivery: parse server url: %w", err)
	}
	// The configured base URL doubles as the REST base, so accept http(s)
	// and rewrite to the websocket scheme.
	switch endpoint.Scheme {
	case "http":
		endpoint.Scheme = "ws"
	case "https":
		endpoint.Scheme = "wss"
	}
	if apiKey != "" {
		q := endpoint.Query()
		q.Set("key", apiKey)
		endpoint.RawQuery = q.Encode()
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("delivery: dial %s: status %d: %w", matchID, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("delivery: dial %s: %w", matchID, err)
	}

	c := &Channel{
		matchID:  matchID,
		conn:     conn,
		lastSent: lastSent,
		acks:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go c.listen()
	return c, nil
}

// MatchID returns the match this channel is keyed by.
func (c *Channel) MatchID() string {
	return c.matchID
}

// Done is closed when the listener observes channel closure.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// SendUpdate pushes a match_update envelope for the channel's match.
func (c *Channel) SendUpdate(snap snapshot.MatchSnapshot) error {
	env, err := protocol.NewMatchUpdate(c.matchID, snap)
	if err != nil {
		return err
	}
	return c.write(env)
}

func (c *Channel) write(env protocol.Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("delivery: encode envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("delivery: send %s: %w", env.Type, err)
	}
	return nil
}

// AwaitAck waits for one acknowledgment with a hard timeout. It returns
// false on timeout or channel closure; neither is fatal to the caller.
func (c *Channel) AwaitAck(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.acks:
		return true
	case <-c.done:
		return false
	case <-timer.C:
		return false
	}
}

// Close tears the channel down. Closing the transport causes the listener
// goroutine to observe the closure and terminate; it is safe to call more
// than once. Closing must precede opening a channel for a new matchId so
// the server never sees duplicate producers.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// listen demultiplexes inbound traffic: acks feed the bounded ack queue,
// request_data triggers a resend of the last snapshot, anything else is
// logged and ignored.
func (c *Channel) listen() {
	defer close(c.done)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[Delivery] %s: connection closed: %v", c.matchID, err)
			}
			return
		}

		env, err := protocol.Decode(raw)
		if err != nil {
			// Malformed traffic never tears down the connection.
			log.Printf("[Delivery] %s: ignoring malformed message: %v", c.matchID, err)
			continue
		}

		switch env.Type {
		case protocol.TypeAck:
			select {
			case c.acks <- struct{}{}:
			default:
				// Ack with no waiter, drop it.
			}
		case protocol.TypeRequestData:
			c.resendLast()
		default:
			log.Printf("[Delivery] %s: unexpected %s message", c.matchID, env.Type)
		}
	}
}

func (c *Channel) resendLast() {
	if c.lastSent == nil {
		return
	}
	snap, ok := c.lastSent()
	if !ok {
		log.Printf("[Delivery] %s: request_data before first send, nothing to resend", c.matchID)
		return
	}
	if err := c.SendUpdate(snap); err != nil {
		log.Printf("[Delivery] %s: resend failed: %v", c.matchID, err)
		return
	}
	log.Printf("[Delivery] %s: resent last snapshot on request", c.matchID)
}
