package gameserver

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
	sendBufferSize = 256
)

// Connection wraps one client socket and implements
// sessionmanager.MessageSink. Structurally grounded on the teacher's
// internal/websocket/connection.go (buffered outbound channel, a dedicated
// write-pump goroutine, non-blocking Send), deliberately WITHOUT the
// teacher's ticker-driven server-initiated ping: spec.md's design notes
// (§9) call that out by name as a temptation implementers must resist,
// since liveness here is client-driven and socket-close is authoritative.
type Connection struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	send     chan []byte
	closed   bool
	playerID string
}

func newConnection(conn *websocket.Conn) *Connection {
	return &Connection{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Send implements sessionmanager.MessageSink. It never blocks: a slow or
// dead client has its frame dropped rather than stalling the session
// thread (spec §5, "suspension points").
func (c *Connection) Send(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// SetPlayerID records the seat this connection was resolved to on JOIN, so
// later frames can be rate-limited per seat rather than per connection.
func (c *Connection) SetPlayerID(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
}

// PlayerID returns the seat previously recorded by SetPlayerID, or "" before
// JOIN has resolved one.
func (c *Connection) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// Close marks the connection closed and unblocks writePump. Safe to call
// more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump drains the outbound channel onto the socket until it is closed
// or a write fails. Must run in its own goroutine.
func (c *Connection) writePump() {
	defer c.conn.Close()
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump blocks in the caller's goroutine, invoking handle for every
// inbound text frame, until the socket errors or closes. Before handle runs,
// allow is consulted (spec §4.11: one token bucket per connected seat,
// checked in readPump ahead of dispatch); a throttled frame is dropped and
// onThrottled is invoked instead, so a single noisy seat can never reach the
// session thread's command queue.
func (c *Connection) readPump(allow func() bool, onThrottled func(), handle func(frame []byte)) {
	defer c.Close()
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if allow != nil && !allow() {
			if onThrottled != nil {
				onThrottled()
			}
			continue
		}
		handle(data)
	}
}
