package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	outboxSize = 16
)

// Errors returned by Send.
var (
	ErrSlowConsumer = errors.New("ws: subscriber outbox full")
	ErrClosed       = errors.New("ws: subscriber closed")
)

// Client is a websocket subscriber. Send only queues; Serve owns every write to the
// connection so the hub never blocks on a slow peer.
type Client struct {
	conn   *websocket.Conn
	log    *slog.Logger
	outbox chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		conn:   conn,
		log:    logger,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
}

// Send queues payload for delivery.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outbox <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close terminates the connection; Serve returns soon after.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Serve writes queued payloads and keepalive pings until the peer goes away or Close
// is called. It blocks.
func (c *Client) Serve() {
	defer c.Close()
	go c.readLoop()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.outbox:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.log.Debug("websocket send failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(kind int, payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, payload)
}

// readLoop discards inbound frames; it exists to process pongs and notice closes.
func (c *Client) readLoop() {
	defer c.Close()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
