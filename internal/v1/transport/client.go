package transport

import (
	"context"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shareview/signaller/internal/v1/logging"
	"github.com/shareview/signaller/internal/v1/registry"
)

// wsConnection defines the interface for WebSocket connection operations.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

// messageHandler is what the client needs from the dispatcher.
type messageHandler interface {
	Dispatch(ctx context.Context, sender registry.Outbox, raw []byte, sourceAddr string)
}

// Client owns one WebSocket connection: the read pump feeds inbound text
// frames to the dispatcher, the write pump drains the outbox into the
// socket. Either pump ending tears the connection down.
type Client struct {
	conn         wsConnection
	outbox       *Outbox
	handler      messageHandler
	remoteAddr   string
	hashedIP     string
	onDisconnect func(*Client)
}

func newClient(conn wsConnection, handler messageHandler, hashedIP string, onDisconnect func(*Client)) *Client {
	return &Client{
		conn:         conn,
		outbox:       NewOutbox(),
		handler:      handler,
		remoteAddr:   conn.RemoteAddr().String(),
		hashedIP:     hashedIP,
		onDisconnect: onDisconnect,
	}
}

// readPump processes inbound frames one at a time, so a connection never
// races with itself. Non-text frames are ignored.
func (c *Client) readPump() {
	defer func() {
		if c.onDisconnect != nil {
			c.onDisconnect(c)
		}
		c.outbox.Close()
		_ = c.conn.Close()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.handler.Dispatch(context.Background(), c.outbox, data, c.remoteAddr)
	}
}

func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()
	writeWait := 10 * time.Second

	for {
		data, ok := c.outbox.Receive()
		if !ok {
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logging.Error(context.Background(), "error writing message",
				zap.String("remote", c.remoteAddr), zap.Error(err))
			return
		}
	}
}
