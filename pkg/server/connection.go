package server

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tecu23/duel-server/pkg/messages"
)

const sendBufferSize = 256

// Connection is one client, seated or not. The read pump feeds the hub, the
// write pump drains the send buffer so a slow peer never stalls the hub.
type Connection struct {
	ID        uuid.UUID
	transport Transport
	hub       *Hub
	send      chan []byte // Buffered channel of outbound records.

	mu     sync.Mutex
	closed bool

	logger *zap.Logger
}

// NewConnection wraps a transport for the hub
func NewConnection(transport Transport, hub *Hub, logger *zap.Logger) *Connection {
	id := uuid.New()

	return &Connection{
		ID:        id,
		transport: transport,
		hub:       hub,
		send:      make(chan []byte, sendBufferSize),
		logger: logger.With(
			zap.String("connection_id", id.String()),
			zap.String("remote_addr", transport.RemoteAddr()),
		),
	}
}

// ReadPump handles inbound records from the client until the transport fails
func (c *Connection) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.transport.Close()
	}()

	for {
		data, err := c.transport.ReadRecord()
		if errors.Is(err, messages.ErrRecordTooLong) {
			c.logger.Warn("dropping oversized record", zap.Int("limit", messages.MaxRecordSize))
			continue
		}
		if err != nil {
			if isClosed(err) {
				c.logger.Info("connection closed")
			} else {
				c.logger.Info("read error", zap.Error(err))
			}
			return
		}

		msg, err := messages.DecodeInbound(data)
		if err != nil {
			c.logger.Warn("dropping record", zap.Error(err), zap.ByteString("record", truncate(data)))
			continue
		}

		if !c.hub.Dispatch(c, msg) {
			return
		}
	}
}

// WritePump handles outbound records to the client. It closes the transport
// once the send buffer is closed and drained, or on the first write error.
func (c *Connection) WritePump() {
	defer c.transport.Close()

	for data := range c.send {
		if err := c.transport.WriteRecord(data); err != nil {
			c.logger.Info("write error", zap.Error(err))
			c.Close()
			return
		}
	}

	c.logger.Debug("send channel closed")
}

// Send queues a record without blocking. A peer that lets its buffer fill up
// is disconnected.
func (c *Connection) Send(msg messages.Outbound) {
	data, err := messages.Encode(msg)
	if err != nil {
		c.logger.Error("error encoding record", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, closing connection", zap.String("kind", string(msg.Kind())))
		c.closed = true
		close(c.send)
	}
}

// Close stops accepting records. Whatever is already queued is still written
// before the transport is closed.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func truncate(data []byte) []byte {
	const limit = 256
	if len(data) > limit {
		return data[:limit]
	}
	return data
}
