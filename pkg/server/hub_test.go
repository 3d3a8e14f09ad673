package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tecu23/duel-server/pkg/chess"
	"github.com/tecu23/duel-server/pkg/engine"
	"github.com/tecu23/duel-server/pkg/events"
	"github.com/tecu23/duel-server/pkg/game"
	"github.com/tecu23/duel-server/pkg/messages"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

const readTimeout = 2 * time.Second

type testServer struct {
	addr      string
	hub       *Hub
	clk       *clockwork.FakeClock
	publisher *events.Publisher
}

func startServer(t *testing.T, cfg game.Config) *testServer {
	t.Helper()

	if cfg.TimeControl.Initial == 0 {
		cfg.TimeControl.Initial = 2 * time.Minute
	}

	clk := clockwork.NewFakeClockAt(epoch)
	session := game.NewSession(engine.NewChessOracle(), clk, cfg, zap.NewNop())
	publisher := events.NewPublisher()
	hub := NewHub(session, publisher, zap.NewNop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = hub.Run(ctx) }()
	go func() { defer wg.Done(); _ = hub.ServeTCP(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	return &testServer{addr: ln.Addr().String(), hub: hub, clk: clk, publisher: publisher}
}

type testClient struct {
	t       *testing.T
	conn    net.Conn
	records chan messages.Outbound // closed when the server hangs up
}

func (s *testServer) dial(t *testing.T) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", s.addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &testClient{t: t, conn: conn, records: make(chan messages.Outbound, 64)}
	go c.listen()

	return c
}

func (c *testClient) listen() {
	defer close(c.records)

	scanner := messages.NewScanner(c.conn)
	for {
		line, err := scanner.Next()
		if err != nil {
			return
		}
		msg, err := messages.DecodeOutbound(line)
		if err != nil {
			continue
		}
		c.records <- msg
	}
}

func (c *testClient) send(msg messages.Inbound) {
	c.t.Helper()
	require.NoError(c.t, messages.Write(c.conn, msg))
}

func (c *testClient) sendRaw(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *testClient) next() messages.Outbound {
	c.t.Helper()

	select {
	case msg, ok := <-c.records:
		require.True(c.t, ok, "connection closed")
		return msg
	case <-time.After(readTimeout):
		c.t.Fatal("timed out waiting for a record")
		return nil
	}
}

// silent asserts nothing arrives within a short window
func (c *testClient) silent() {
	c.t.Helper()

	select {
	case msg, ok := <-c.records:
		if ok {
			c.t.Errorf("unexpected record %#v", msg)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

// closed asserts the server hangs up without sending anything else
func (c *testClient) closed() {
	c.t.Helper()

	select {
	case msg, ok := <-c.records:
		assert.False(c.t, ok, "unexpected record %#v", msg)
	case <-time.After(readTimeout):
		c.t.Fatal("connection still open")
	}
}

func expect[T messages.Outbound](t *testing.T, c *testClient) T {
	t.Helper()

	msg := c.next()
	got, ok := msg.(T)
	require.True(t, ok, "expected %T, got %#v", *new(T), msg)
	return got
}

// pair joins two clients and returns them as white and black
func (s *testServer) pair(t *testing.T) (*testClient, *testClient) {
	t.Helper()

	white := s.dial(t)
	assert.Equal(t, chess.White, expect[messages.JoinAccepted](t, white).Color)

	black := s.dial(t)
	assert.Equal(t, chess.Black, expect[messages.JoinAccepted](t, black).Color)

	return white, black
}

// start pairs two clients, readies both and consumes the game_start records
func (s *testServer) start(t *testing.T) (*testClient, *testClient) {
	t.Helper()

	white, black := s.pair(t)
	white.send(messages.Ready{})
	black.send(messages.Ready{})

	expect[messages.GameStart](t, white)
	expect[messages.GameStart](t, black)

	return white, black
}

func move(from, to chess.Square) messages.Move {
	return messages.Move{From: from, To: to, Timestamp: messages.Timestamp(time.Now())}
}

func TestHub_OpeningExchange(t *testing.T) {
	// Given two paired clients
	srv := startServer(t, game.Config{})
	white, black := srv.pair(t)

	// When both are ready
	white.send(messages.Ready{})
	black.send(messages.Ready{})

	// Then each receives its own side and the same state
	ws := expect[messages.GameStart](t, white)
	bs := expect[messages.GameStart](t, black)
	assert.Equal(t, chess.White, ws.Color)
	assert.Equal(t, chess.Black, bs.Color)
	assert.Equal(t, ws.FEN, bs.FEN)
	assert.Equal(t, chess.White, ws.Turn)
	assert.Equal(t, 120.0, ws.WhiteTime)
	assert.Equal(t, 120.0, ws.BlackTime)
	assert.Equal(t, messages.Timestamp(epoch), ws.ServerTime)

	// When white thinks for three seconds and plays e2e4
	srv.clk.Advance(3 * time.Second)
	white.send(move(chess.Square{6, 4}, chess.Square{4, 4}))

	// Then both see it with white charged
	for _, c := range []*testClient{white, black} {
		ma := expect[messages.MoveAccepted](t, c)
		assert.Equal(t, chess.Black, ma.Turn)
		assert.Equal(t, 117.0, ma.WhiteTime)
		assert.Equal(t, 120.0, ma.BlackTime)
		assert.NotEqual(t, ws.FEN, ma.FEN)
	}

	// When black tries a square no piece can reach
	black.send(move(chess.Square{0, 0}, chess.Square{4, 0}))

	// Then only black is told
	im := expect[messages.IllegalMove](t, black)
	assert.Equal(t, "Illegal move", im.Reason)
	assert.Equal(t, "illegal_move", im.Code)
	white.silent()

	// And black can still move, charged from its own last tick
	srv.clk.Advance(2 * time.Second)
	black.send(move(chess.Square{1, 4}, chess.Square{3, 4}))

	ma := expect[messages.MoveAccepted](t, white)
	assert.Equal(t, chess.White, ma.Turn)
	assert.Equal(t, 117.0, ma.WhiteTime)
	assert.Equal(t, 118.0, ma.BlackTime)
	expect[messages.MoveAccepted](t, black)

	// And white's next move is accepted
	white.send(move(chess.Square{7, 6}, chess.Square{5, 5}))
	assert.Equal(t, chess.Black, expect[messages.MoveAccepted](t, black).Turn)
}

func TestHub_NotYourTurn(t *testing.T) {
	srv := startServer(t, game.Config{})
	white, black := srv.start(t)

	black.send(move(chess.Square{1, 4}, chess.Square{3, 4}))

	im := expect[messages.IllegalMove](t, black)
	assert.Equal(t, "Not your turn", im.Reason)
	assert.Equal(t, "not_your_turn", im.Code)
	white.silent()
}

func TestHub_MoveBeforeStart(t *testing.T) {
	srv := startServer(t, game.Config{})
	white, _ := srv.pair(t)

	white.send(move(chess.Square{6, 4}, chess.Square{4, 4}))

	assert.Equal(t, "not_active", expect[messages.IllegalMove](t, white).Code)
}

func TestHub_ReadyAfterStartIsIgnored(t *testing.T) {
	srv := startServer(t, game.Config{})
	white, black := srv.start(t)

	white.send(messages.Ready{})
	black.send(messages.Ready{})

	white.silent()
	black.silent()
}

func TestHub_MalformedRecordsKeepTheConnection(t *testing.T) {
	srv := startServer(t, game.Config{})
	white, black := srv.start(t)

	white.sendRaw(`not json`)
	white.sendRaw(`{"type":"resign"}`)
	white.sendRaw(`{"type":"move","from":[6,4]}`)
	white.sendRaw(``)
	white.send(move(chess.Square{6, 4}, chess.Square{4, 4}))

	assert.Equal(t, chess.Black, expect[messages.MoveAccepted](t, white).Turn)
	expect[messages.MoveAccepted](t, black)
}

func TestHub_OversizedRecordKeepsTheConnection(t *testing.T) {
	// Given an active match
	srv := startServer(t, game.Config{})
	white, black := srv.start(t)

	// When white sends a line past the record limit, then a legal move
	white.sendRaw(`{"type":"move","junk":"` + strings.Repeat("x", 70*1024) + `"}`)
	white.send(move(chess.Square{6, 4}, chess.Square{4, 4}))

	// Then the long line is dropped and the match goes on
	assert.Equal(t, chess.Black, expect[messages.MoveAccepted](t, black).Turn)
	assert.Equal(t, chess.Black, expect[messages.MoveAccepted](t, white).Turn)
}

func TestHub_ThirdConnectionRejected(t *testing.T) {
	srv := startServer(t, game.Config{})
	srv.pair(t)

	third := srv.dial(t)

	assert.Equal(t, "Session full", expect[messages.JoinRejected](t, third).Reason)
	third.closed()
}

func TestHub_Disconnect(t *testing.T) {
	t.Run("remaining player wins an active match", func(t *testing.T) {
		srv := startServer(t, game.Config{})
		ended := make(chan events.Event, 1)
		srv.publisher.Subscribe(events.EventMatchEnded, func(e events.Event) { ended <- e })
		white, black := srv.start(t)

		white.conn.Close()

		over := expect[messages.GameOver](t, black)
		assert.Equal(t, ReasonOpponentDisconnected, over.Reason)
		assert.Equal(t, game.ResultBlackWon, over.Result)

		select {
		case e := <-ended:
			payload := e.Payload.(events.MatchEndedPayload)
			assert.Equal(t, game.MethodAbandoned, payload.Method)
		case <-time.After(readTimeout):
			t.Fatal("no MATCH_ENDED event")
		}
	})

	t.Run("freed seat can be taken and a new match played", func(t *testing.T) {
		srv := startServer(t, game.Config{})
		white, black := srv.start(t)

		white.conn.Close()
		expect[messages.GameOver](t, black)

		newcomer := srv.dial(t)
		assert.Equal(t, chess.White, expect[messages.JoinAccepted](t, newcomer).Color)

		newcomer.send(messages.Ready{})
		black.send(messages.Ready{})

		assert.Equal(t, chess.White, expect[messages.GameStart](t, newcomer).Color)
		assert.Equal(t, chess.Black, expect[messages.GameStart](t, black).Color)
	})

	t.Run("nothing is sent when no match is running", func(t *testing.T) {
		srv := startServer(t, game.Config{})
		white, black := srv.pair(t)

		white.conn.Close()

		black.silent()
	})
}

func TestHub_Checkmate(t *testing.T) {
	srv := startServer(t, game.Config{})
	white, black := srv.start(t)

	plies := []struct {
		by       *testClient
		from, to chess.Square
	}{
		{white, chess.Square{6, 5}, chess.Square{5, 5}}, // f2f3
		{black, chess.Square{1, 4}, chess.Square{3, 4}}, // e7e5
		{white, chess.Square{6, 6}, chess.Square{4, 6}}, // g2g4
		{black, chess.Square{0, 3}, chess.Square{4, 7}}, // d8h4
	}
	for _, p := range plies {
		p.by.send(move(p.from, p.to))
		expect[messages.MoveAccepted](t, white)
		expect[messages.MoveAccepted](t, black)
	}

	for _, c := range []*testClient{white, black} {
		over := expect[messages.GameOver](t, c)
		assert.Equal(t, game.ResultBlackWon, over.Result)
		assert.True(t, strings.HasPrefix(over.Reason, "Game Over: 0-1"))
	}

	// Both have to ready up again for a rematch
	white.send(messages.Ready{})
	white.silent()
	black.send(messages.Ready{})
	assert.Equal(t, 120.0, expect[messages.GameStart](t, white).WhiteTime)
	expect[messages.GameStart](t, black)
}

func TestHub_FlagFall(t *testing.T) {
	srv := startServer(t, game.Config{EnforceFlagFall: true})
	white, black := srv.start(t)

	srv.clk.Advance(2 * time.Minute)

	for _, c := range []*testClient{white, black} {
		over := expect[messages.GameOver](t, c)
		assert.Equal(t, game.ResultBlackWon, over.Result)
		assert.Equal(t, "Game Over: 0-1 (Timeout)", over.Reason)
	}
}

func TestHub_WebSocket(t *testing.T) {
	srv := startServer(t, game.Config{})

	upgrader := websocket.Upgrader{}
	httpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		srv.hub.Attach(NewWebSocketTransport(ws))
	}))
	t.Cleanup(httpSrv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(httpSrv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	// A WebSocket player and a TCP player share the session
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(readTimeout)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	msg, err := messages.DecodeOutbound(data)
	require.NoError(t, err)
	assert.Equal(t, messages.JoinAccepted{Color: chess.White}, msg)

	black := srv.dial(t)
	assert.Equal(t, chess.Black, expect[messages.JoinAccepted](t, black).Color)

	ready, err := messages.Encode(messages.Ready{})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, ready))
	black.send(messages.Ready{})

	_, data, err = ws.ReadMessage()
	require.NoError(t, err)
	msg, err = messages.DecodeOutbound(data)
	require.NoError(t, err)
	assert.Equal(t, chess.White, msg.(messages.GameStart).Color)
	assert.Equal(t, chess.Black, expect[messages.GameStart](t, black).Color)

	// An oversized frame is dropped without closing the socket
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"move","junk":"`+strings.Repeat("x", 70*1024)+`"}`)))
	opening, err := messages.Encode(move(chess.Square{6, 4}, chess.Square{4, 4}))
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, opening))

	assert.Equal(t, chess.Black, expect[messages.MoveAccepted](t, black).Turn)
	_, data, err = ws.ReadMessage()
	require.NoError(t, err)
	msg, err = messages.DecodeOutbound(data)
	require.NoError(t, err)
	assert.IsType(t, messages.MoveAccepted{}, msg)
}
