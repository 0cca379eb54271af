package notifications

import (
	"log/slog"
	"sync"
	"time"

	"circle/internal/middleware"
	"circle/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10 // must beat pongWait
	maxInboundSize = 4096              // the feed ignores inbound frames
	sendBufferSize = 256
)

var dropNotice = []byte(`{"type":"` + EventMessagesDropped + `","payload":{"reason":"buffer_full"}}`)

// Client is one feed connection. Events are queued on send and written by a
// single writer goroutine; send is never closed, done signals shutdown.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uint
	send   chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Close asks the writer to send a close frame and stop. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Serve runs the connection until the peer leaves or the hub shuts down, then
// unregisters it.
func (c *Client) Serve() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	c.readLoop()
	c.hub.UnregisterClient(c)
	c.Close()
	<-writerDone
}

// readLoop only services control frames so pongs extend the deadline.
func (c *Client) readLoop() {
	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("feed connection read failed",
					slog.Uint64("user_id", uint64(c.userID)),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "closing"))
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// enqueue never blocks. When the buffer is full the oldest event is replaced
// by a messagesDropped notice so the client knows to re-fetch.
func (c *Client) enqueue(msg []byte) {
	select {
	case <-c.done:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "closed").Inc()
		return
	default:
	}

	select {
	case c.send <- msg:
		return
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "full").Inc()
	middleware.Logger.Warn("feed buffer full, dropping oldest event", slog.Uint64("user_id", uint64(c.userID)))
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- dropNotice:
	default:
	}
}
