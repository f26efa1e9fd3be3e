package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one live websocket connection. Its session binding (userID and
// roomID) starts unset and is set exactly once by a successful create or
// join; only the connection's own read loop mutates it, so it needs no lock.
// The send queue is shared with broadcasting goroutines and is guarded.
type Client struct {
	gw   *Gateway
	conn *websocket.Conn

	userID string
	roomID string

	mu     sync.Mutex
	send   chan message
	closed bool
}

func newClient(gw *Gateway, conn *websocket.Conn) *Client {
	return &Client{
		gw:   gw,
		conn: conn,
		send: make(chan message, gw.cfg.SendBuffer),
	}
}

// bound reports whether the connection has joined a room.
func (c *Client) bound() bool {
	return c.userID != "" && c.roomID != ""
}

// bind ties the connection to a user in a room.
func (c *Client) bind(userID, roomID string) {
	c.userID = userID
	c.roomID = roomID
}

// trySend enqueues an outbound message without blocking. Messages to a
// closed or saturated connection are dropped; a reader that slow is about to
// fail its keepalive anyway.
func (c *Client) trySend(msg message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.gw.logger.Warn("dropping message to saturated connection",
			zap.String("type", msg.Type),
			zap.String("user_id", c.userID),
		)
	}
}

// reply sends the ack for a request event back to this connection only.
func (c *Client) reply(event string, ack ackReply) {
	c.trySend(message{Type: event, Payload: ack})
}

// closeSend marks the client closed and closes the send queue, terminating
// the write pump. Safe to call once per client.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump consumes inbound events until the connection drops, then performs
// disconnect cleanup. It is the only goroutine that reads from the socket.
func (c *Client) readPump() {
	defer func() {
		c.gw.handleDisconnect(c)
		c.closeSend()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.gw.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.gw.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.gw.cfg.PongWait))
	})

	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gw.logger.Warn("websocket read failed",
					zap.String("user_id", c.userID),
					zap.Error(err),
				)
			}
			return
		}
		c.gw.dispatch(c, env)
	}
}

// writePump owns the socket's write side: it drains the send queue and emits
// keepalive pings. It exits when closeSend closes the queue or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.gw.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.gw.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.gw.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
