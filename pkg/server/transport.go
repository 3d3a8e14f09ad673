package server

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tecu23/duel-server/pkg/messages"
)

const writeWait = 10 * time.Second

// Transport moves whole records over a connection. Records passed to
// WriteRecord already carry their line separator.
type Transport interface {
	ReadRecord() ([]byte, error)
	WriteRecord(data []byte) error
	Close() error
	RemoteAddr() string
}

type tcpTransport struct {
	conn    net.Conn
	scanner *messages.Scanner
}

// NewTCPTransport frames records on a stream connection, one per line
func NewTCPTransport(conn net.Conn) Transport {
	return &tcpTransport{
		conn:    conn,
		scanner: messages.NewScanner(conn),
	}
}

func (t *tcpTransport) ReadRecord() ([]byte, error) {
	return t.scanner.Next()
}

func (t *tcpTransport) WriteRecord(data []byte) error {
	_, err := t.conn.Write(data)
	return err
}

func (t *tcpTransport) Close() error      { return t.conn.Close() }
func (t *tcpTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

type wsTransport struct {
	ws      *websocket.Conn
	writeMu sync.Mutex // Mutex to protect concurrent writes to ws.
}

// NewWebSocketTransport carries one record per text message
func NewWebSocketTransport(ws *websocket.Conn) Transport {
	return &wsTransport{ws: ws}
}

func (t *wsTransport) ReadRecord() ([]byte, error) {
	for {
		msgType, r, err := t.ws.NextReader()
		if err != nil {
			return nil, err
		}

		// We only handle text
		if msgType != websocket.TextMessage {
			continue
		}

		data, err := io.ReadAll(io.LimitReader(r, messages.MaxRecordSize+1))
		if err != nil {
			return nil, err
		}
		if len(data) > messages.MaxRecordSize {
			if _, err := io.Copy(io.Discard, r); err != nil {
				return nil, err
			}
			return nil, messages.ErrRecordTooLong
		}

		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}
		return data, nil
	}
}

func (t *wsTransport) WriteRecord(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = t.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return t.ws.WriteMessage(websocket.TextMessage, bytes.TrimRight(data, "\n"))
}

func (t *wsTransport) Close() error      { return t.ws.Close() }
func (t *wsTransport) RemoteAddr() string { return t.ws.RemoteAddr().String() }
