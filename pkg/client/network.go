package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tecu23/duel-server/pkg/chess"
	"github.com/tecu23/duel-server/pkg/messages"
)

// Client is a connection to the duel server
type Client struct {
	conn    net.Conn
	writeMu sync.Mutex

	clk    clockwork.Clock
	logger *zap.Logger
}

// Dial connects to the server at addr
func Dial(ctx context.Context, addr string, clk clockwork.Clock, logger *zap.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	return NewClient(conn, clk, logger), nil
}

// NewClient wraps an established connection
func NewClient(conn net.Conn, clk clockwork.Clock, logger *zap.Logger) *Client {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	return &Client{conn: conn, clk: clk, logger: logger}
}

// Listen reads server records and hands each one to handle until the server
// hangs up, the connection fails or ctx is done. Records that do not parse are
// logged and skipped.
func (c *Client) Listen(ctx context.Context, handle func(messages.Outbound)) error {
	stop := context.AfterFunc(ctx, func() {
		c.conn.Close()
	})
	defer stop()

	scanner := messages.NewScanner(c.conn)
	for {
		line, err := scanner.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		msg, err := messages.DecodeOutbound(line)
		if err != nil {
			c.logger.Warn("dropping server record", zap.Error(err))
			continue
		}

		c.logger.Debug("received", zap.String("kind", string(msg.Kind())))
		handle(msg)
	}
}

// SendReady tells the server this player wants to start
func (c *Client) SendReady() error {
	return c.send(messages.Ready{})
}

// SendMove requests a move. The timestamp is informational only.
func (c *Client) SendMove(from, to chess.Square, promotion string) error {
	return c.send(messages.Move{
		From:      from,
		To:        to,
		Promotion: promotion,
		Timestamp: messages.Timestamp(c.clk.Now()),
	})
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(msg messages.Inbound) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := messages.Write(c.conn, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind(), err)
	}
	return nil
}
