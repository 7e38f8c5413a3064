package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hyperloop/hyperloop-go/src/internal/wire"
)

// writeWait is the maximum time allowed for a single socket write.
const writeWait = 10 * time.Second

// sendBuffer is the number of outbound messages buffered per connection. A
// connection that falls further behind than this is closed as a slow
// consumer.
const sendBuffer = 64

// connection is the hub-side representation of one accepted socket.
//
// The reverse-index sets (functions, requested, serving) are owned by the
// hub's run loop and must not be touched elsewhere. They exist so that
// closing a connection purges all state it owns in O(owned), not O(table).
type connection struct {
	id       string
	identity string // declared via register; advisory, logging only
	sock     *websocket.Conn
	send     chan []byte

	functions map[string]struct{} // function IDs this connection provides
	requested map[string]struct{} // lobby call IDs awaiting a response for this connection
	serving   map[string]struct{} // lobby call IDs this connection is executing

	closeOnce sync.Once
}

func newConnection(sock *websocket.Conn) *connection {
	return &connection{
		id:   uuid.NewString(),
		sock: sock,
		send: make(chan []byte, sendBuffer),

		functions: map[string]struct{}{},
		requested: map[string]struct{}{},
		serving:   map[string]struct{}{},
	}
}

// name returns the connection's log name: the declared identity if one has
// been registered, otherwise a truncated connection ID.
func (c *connection) name() string {
	if c.identity != "" {
		return c.identity
	}

	return c.id[:8]
}

// write queues m for delivery. It reports false if the connection's send
// buffer is full, in which case the hub closes the connection rather than
// stalling the routing loop.
func (c *connection) write(m wire.Message) (bool, error) {
	buf, err := wire.Marshal(m)
	if err != nil {
		return false, err
	}

	select {
	case c.send <- buf:
		return true, nil
	default:
		return false, nil
	}
}

// shutdown releases the socket. It is safe to call multiple times; the write
// pump exits when the send channel is closed.
func (c *connection) shutdown() {
	c.closeOnce.Do(func() {
		close(c.send)
		_ = c.sock.Close()
	})
}

// readPump reads inbound messages and forwards them to the hub's run loop.
// It runs in its own goroutine, one per connection.
func (c *connection) readPump(h *Hub) {
	pongWait := h.pingInterval * 2

	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, buf, err := c.sock.ReadMessage()
		if err != nil {
			select {
			case h.closed <- c:
			case <-h.sm.Finalized:
			}
			return
		}

		_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))

		m, err := wire.Unmarshal(buf)
		if err != nil {
			// a malformed message is a per-connection protocol error, never
			// a hub failure
			logProtocolError(h.logger, c, err)
			continue
		}

		select {
		case h.inbound <- inbound{c, m}:
		case <-h.sm.Finalized:
			return
		}
	}
}

// writePump serializes all socket writes for the connection, interleaving
// keep-alive pings. It runs in its own goroutine, one per connection.
func (c *connection) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case buf, ok := <-c.send:
			if !ok {
				_ = c.sock.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait),
				)
				return
			}

			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, buf); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
