package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/txn2/live-search/pkg/session"
)

// Errors returned by client.Send.
var (
	ErrSlowClient = errors.New("client outbound buffer full")
	ErrClientGone = errors.New("client disconnected")
)

// client owns one WebSocket connection. The read loop runs on the handler
// goroutine; writePump is the only writer.
type client struct {
	conn *websocket.Conn
	cfg  Config

	send    chan session.Message
	dropped chan struct{}
	gone    chan struct{}

	dropOnce sync.Once
	goneOnce sync.Once
}

func newClient(conn *websocket.Conn, cfg Config) *client {
	return &client{
		conn:    conn,
		cfg:     cfg,
		send:    make(chan session.Message, cfg.SendBuffer),
		dropped: make(chan struct{}),
		gone:    make(chan struct{}),
	}
}

// Send queues msg without blocking. A full buffer marks the client as too
// slow and schedules the connection to close.
func (c *client) Send(msg session.Message) error {
	select {
	case <-c.gone:
		return ErrClientGone
	case <-c.dropped:
		return ErrSlowClient
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.dropOnce.Do(func() { close(c.dropped) })
		return ErrSlowClient
	}
}

// isDropped reports whether the client was dropped for falling behind.
func (c *client) isDropped() bool {
	select {
	case <-c.dropped:
		return true
	default:
		return false
	}
}

func (c *client) markGone() {
	c.goneOnce.Do(func() { close(c.gone) })
}

// readPump forwards frames to receive until the connection fails.
func (c *client) readPump(receive func([]byte) error) error {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := receive(data); err != nil {
			return err
		}
	}
}

// writePump writes queued messages and keepalive pings until ctx is done,
// the client is dropped, or a write fails. It closes the connection on exit,
// which unblocks readPump.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.writeClose(websocket.CloseGoingAway, "server shutting down")
			return
		case <-c.dropped:
			c.writeClose(websocket.CloseTryAgainLater, "client too slow")
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) writeClose(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
}
