// Package transport maintains the WebSocket channel to the match server:
// event submission, acks, server pushes and reconnection. Delivery is
// at-least-once and ordered-enough; the reconciliation engine tolerates
// duplicate and out-of-order acks.
package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"github.com/matchdesk/console/internal/model"
)

const (
	sendChSize   = 10_000
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Channel manages a WebSocket connection with a single write goroutine.
type Channel struct {
	mu        sync.Mutex
	conn      *ws.Conn
	sendCh    chan []byte
	done      chan struct{} // closed on shutdown
	closed    bool
	connected bool

	// Single-flight guard: the write and read loops can fail at the
	// same time and both spawn a reconnect.
	reconnecting bool

	wsURL  string
	secret string

	// Cached session_open message for reconnect replay.
	cachedOpenMsg []byte

	callbacks Callbacks
	logger    *slog.Logger
}

// NewChannel creates an unconnected channel.
func NewChannel(logger *slog.Logger, callbacks Callbacks) *Channel {
	return &Channel{
		sendCh:    make(chan []byte, sendChSize),
		done:      make(chan struct{}),
		callbacks: callbacks,
		logger:    logger,
	}
}

// Dial connects to the match server and starts the read/write loops.
func (c *Channel) Dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return &model.TransportError{Op: "dial", Err: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setConnected(true)

	go c.writeLoop()
	go c.readLoop()

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *Channel) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// Connected reports whether the channel currently has a live connection.
// Drives the operator's persistent connection indicator.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// OpenSession announces the match session. The message is cached and
// replayed after every reconnect so the server knows which match this
// console is recording.
func (c *Channel) OpenSession(matchID, operatorID string) error {
	data, err := json.Marshal(Message{
		Type:       TypeSessionOpen,
		MatchID:    matchID,
		OperatorID: operatorID,
	})
	if err != nil {
		return fmt.Errorf("marshal session_open: %w", err)
	}

	c.mu.Lock()
	c.cachedOpenMsg = data
	c.mu.Unlock()

	return c.send(data)
}

// SubmitEvent transmits an optimistically recorded event. The entry stays
// pending until the ack arrives; a send failure here leaves it queued for
// the journal replay path.
func (c *Channel) SubmitEvent(ev model.MatchEvent) error {
	if !c.Connected() {
		return model.ErrNotConnected
	}
	data, err := json.Marshal(Message{Type: TypeSubmitEvent, Event: &ev})
	if err != nil {
		return fmt.Errorf("marshal submit_event: %w", err)
	}
	return c.send(data)
}

// DeleteEvent requests removal of a server-known event. Local removal only
// happens once the delete ack comes back.
func (c *Channel) DeleteEvent(clientID uuid.UUID, serverID string) error {
	if !c.Connected() {
		return model.ErrNotConnected
	}
	data, err := json.Marshal(Message{
		Type:     TypeDeleteEvent,
		ClientID: clientID,
		ServerID: serverID,
	})
	if err != nil {
		return fmt.Errorf("marshal delete_event: %w", err)
	}
	return c.send(data)
}

// send pushes data to the write loop. Fails rather than blocks when the
// buffer is full so the caller can surface the condition.
func (c *Channel) send(data []byte) error {
	select {
	case c.sendCh <- data:
		return nil
	default:
		c.logger.Warn("WebSocket send buffer full, refusing message")
		return &model.TransportError{Op: "send", Err: fmt.Errorf("send buffer full")}
	}
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (c *Channel) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect()
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

// readLoop reads server messages and routes them to the callbacks.
func (c *Channel) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect()
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Debug("Undecodable message received", "raw", string(raw))
			continue
		}
		c.route(msg)
	}
}

// route dispatches one inbound message to its callback.
func (c *Channel) route(msg Message) {
	cb := c.callbacks
	switch msg.Type {
	case TypeAck:
		if cb.OnAck != nil {
			cb.OnAck(model.Ack{
				ClientID:    msg.ClientID,
				ServerID:    msg.ServerID,
				DuplicateOf: msg.DuplicateOf,
				TeamStatus:  msg.TeamStatus,
			})
		}
	case TypeReject:
		if cb.OnReject != nil {
			cb.OnReject(msg.ClientID, msg.Reason, msg.Fields)
		}
	case TypeDeleteAck:
		if cb.OnDeleteAck != nil {
			cb.OnDeleteAck(msg.ClientID)
		}
	case TypeEventCreated:
		if cb.OnEventCreated != nil && msg.Event != nil {
			cb.OnEventCreated(*msg.Event)
		}
	case TypeEventDeleted:
		if cb.OnEventDeleted != nil {
			cb.OnEventDeleted(msg.ServerID)
		}
	case TypeRefreshRequested:
		if cb.OnRefreshRequested != nil {
			cb.OnRefreshRequested()
		}
	default:
		c.logger.Debug("Unknown message type", "type", msg.Type)
	}
}

// reconnect attempts to re-establish the connection with exponential
// backoff. On success it replays the cached session_open message and
// restarts the read/write loops. Only one reconnect runs at a time; a
// second caller returns immediately.
func (c *Channel) reconnect() {
	c.mu.Lock()
	if c.closed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()
	c.setConnected(false)

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.logger.Info("Reconnecting to match server", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		cached := c.cachedOpenMsg
		c.mu.Unlock()

		// Replay session_open so the server knows which match this is.
		if cached != nil {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set deadline for session_open replay", "error", err)
				_ = conn.Close()
				continue
			}
			if err := conn.WriteMessage(ws.TextMessage, cached); err != nil {
				c.logger.Warn("Failed to replay session_open after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		c.setConnected(true)
		go c.writeLoop()
		go c.readLoop()
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// setConnected updates the connection flag and notifies the callback.
func (c *Channel) setConnected(connected bool) {
	c.mu.Lock()
	changed := c.connected != connected
	c.connected = connected
	cb := c.callbacks.OnConnectionChange
	c.mu.Unlock()

	if changed && cb != nil {
		cb(connected)
	}
}

// Close sends a close frame and shuts down all goroutines.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
