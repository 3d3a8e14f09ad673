package server

import (
	"context"

	"go.uber.org/zap"

	"github.com/tecu23/duel-server/pkg/chess"
	"github.com/tecu23/duel-server/pkg/events"
	"github.com/tecu23/duel-server/pkg/game"
	"github.com/tecu23/duel-server/pkg/messages"
)

// Notices sent outside the regular game flow
const (
	ReasonSessionFull          = "Session full"
	ReasonOpponentDisconnected = "Opponent disconnected"
)

// InboundHubMessage are the messages that the hub receives
type InboundHubMessage struct {
	Conn    *Connection      // who sent it
	Message messages.Inbound // already validated at the framing boundary
}

// Hub keeps track of the seated connections and is the only goroutine that
// drives the session. Records from every connection arrive on one channel,
// so records of a single connection are handled in arrival order.
type Hub struct {
	connections map[*Connection]chess.Side // Seated connections

	register   chan *Connection       // Incoming registration
	unregister chan *Connection       // Incoming unregistration
	inbound    chan InboundHubMessage // Records waiting to be dispatched
	timeouts   chan game.Outcome      // Flags that fell between moves

	done chan struct{}

	session   *game.Session
	publisher *events.Publisher
	logger    *zap.Logger
}

// NewHub creates a hub driving session
func NewHub(session *game.Session, publisher *events.Publisher, logger *zap.Logger) *Hub {
	h := &Hub{
		connections: make(map[*Connection]chess.Side),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		inbound:     make(chan InboundHubMessage),
		timeouts:    make(chan game.Outcome, 1),
		done:        make(chan struct{}),
		session:     session,
		publisher:   publisher,
		logger:      logger,
	}

	session.OnTimeout(func(outcome game.Outcome) {
		select {
		case h.timeouts <- outcome:
		case <-h.done:
		}
	})

	return h
}

// Run is the main execution of the hub. It returns once ctx is cancelled,
// after closing every seated connection.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for conn := range h.connections {
				conn.Close()
			}
			h.logger.Info("hub stopped", zap.Int("connections", len(h.connections)))
			return nil

		case conn := <-h.register:
			h.registerConnection(conn)

		case conn := <-h.unregister:
			h.unregisterConnection(conn)

		case msg := <-h.inbound:
			h.handleInbound(msg)

		case outcome := <-h.timeouts:
			h.endMatch(outcome, outcome.Description())
		}
	}
}

// Attach registers a connection over transport and starts its pumps
func (h *Hub) Attach(transport Transport) *Connection {
	conn := NewConnection(transport, h, h.logger)

	if !h.Register(conn) {
		transport.Close()
		return conn
	}

	go conn.WritePump()
	go conn.ReadPump()

	return conn
}

// Register hands a new connection to the hub. It returns false if the hub
// has stopped.
func (h *Hub) Register(conn *Connection) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a connection from the hub
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Dispatch queues a record for the hub. It returns false if the hub has
// stopped.
func (h *Hub) Dispatch(conn *Connection, msg messages.Inbound) bool {
	select {
	case h.inbound <- InboundHubMessage{Conn: conn, Message: msg}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) registerConnection(conn *Connection) {
	side, err := h.session.Accept(conn.ID)
	if err != nil {
		conn.logger.Info("join rejected", zap.Error(err))
		conn.Send(messages.JoinRejected{Reason: ReasonSessionFull})
		conn.Close()

		h.publisher.Publish(events.Event{
			Type:    events.EventJoinRejected,
			Payload: events.PlayerPayload{PlayerID: conn.ID.String(), RemoteAddr: conn.transport.RemoteAddr()},
		})
		return
	}

	h.connections[conn] = side
	conn.logger.Info("new connection registered", zap.String("side", string(side)), zap.Int("connections", len(h.connections)))

	conn.Send(messages.JoinAccepted{Color: side})

	h.publisher.Publish(events.Event{
		Type: events.EventPlayerJoined,
		Payload: events.PlayerPayload{
			PlayerID:   conn.ID.String(),
			Side:       string(side),
			RemoteAddr: conn.transport.RemoteAddr(),
		},
	})
}

func (h *Hub) unregisterConnection(conn *Connection) {
	side, ok := h.connections[conn]
	if !ok {
		return
	}

	delete(h.connections, conn)
	conn.Close()
	conn.logger.Info("connection unregistered", zap.Int("connections", len(h.connections)))

	outcome := h.session.Remove(conn.ID)

	h.publisher.Publish(events.Event{
		Type:    events.EventPlayerLeft,
		Payload: events.PlayerPayload{PlayerID: conn.ID.String(), Side: string(side)},
	})

	if outcome != nil {
		h.endMatch(*outcome, ReasonOpponentDisconnected)
	}
}

// handleInbound is where records from a client drive the session
func (h *Hub) handleInbound(msg InboundHubMessage) {
	conn := msg.Conn
	side, ok := h.connections[conn]
	if !ok {
		return
	}

	switch m := msg.Message.(type) {
	case messages.Ready:
		h.handleReady(conn)

	case messages.Move:
		h.handleMove(conn, side, m)

	default:
		conn.logger.Warn("unhandled record", zap.String("kind", string(m.Kind())))
	}
}

func (h *Hub) handleReady(conn *Connection) {
	if err := h.session.MarkReady(conn.ID); err != nil {
		conn.logger.Warn("ready from unknown player", zap.Error(err))
		return
	}

	start, ok := h.session.TryStart()
	if !ok {
		return
	}

	snap := start.Snapshot
	for c, side := range h.connections {
		c.Send(messages.GameStart{
			Color:      side,
			FEN:        snap.FEN,
			WhiteTime:  messages.Seconds(snap.WhiteTime),
			BlackTime:  messages.Seconds(snap.BlackTime),
			Turn:       snap.Turn,
			ServerTime: messages.Timestamp(snap.ServerTime),
		})
	}

	payload := events.MatchStartedPayload{
		FEN:       snap.FEN,
		WhiteTime: messages.Seconds(snap.WhiteTime),
		BlackTime: messages.Seconds(snap.BlackTime),
		StartedAt: snap.ServerTime,
	}
	for _, p := range start.Players {
		if p.Side == chess.White {
			payload.White = p.ID.String()
		} else {
			payload.Black = p.ID.String()
		}
	}

	h.publisher.Publish(events.Event{
		Type:    events.EventMatchStarted,
		MatchID: start.MatchID.String(),
		Payload: payload,
	})
}

func (h *Hub) handleMove(conn *Connection, side chess.Side, m messages.Move) {
	res, err := h.session.Submit(side, m.From, m.To, m.Promotion)
	if err != nil {
		conn.Send(messages.IllegalMove{
			Reason: game.RejectionReason(err),
			Code:   game.RejectionCode(err),
		})
		return
	}

	if res.Applied {
		snap := res.Snapshot
		h.broadcast(messages.MoveAccepted{
			FEN:        snap.FEN,
			Turn:       snap.Turn,
			WhiteTime:  messages.Seconds(snap.WhiteTime),
			BlackTime:  messages.Seconds(snap.BlackTime),
			ServerTime: messages.Timestamp(snap.ServerTime),
		})

		h.publisher.Publish(events.Event{
			Type:    events.EventMoveApplied,
			MatchID: snap.MatchID.String(),
			Payload: events.MoveAppliedPayload{
				Side:      string(side),
				Move:      res.Move,
				FEN:       snap.FEN,
				WhiteTime: messages.Seconds(snap.WhiteTime),
				BlackTime: messages.Seconds(snap.BlackTime),
			},
		})
	}

	if res.Outcome != nil {
		h.endMatch(*res.Outcome, res.Outcome.Description())
	}
}

// endMatch tells every seated connection the match is over and publishes it
func (h *Hub) endMatch(outcome game.Outcome, reason string) {
	h.broadcast(messages.GameOver{Reason: reason, Result: outcome.Result})

	h.publisher.Publish(events.Event{
		Type:    events.EventMatchEnded,
		MatchID: outcome.MatchID.String(),
		Payload: events.MatchEndedPayload{
			Result:    outcome.Result,
			Method:    outcome.Method,
			Reason:    reason,
			FEN:       outcome.Snapshot.FEN,
			Moves:     outcome.Moves,
			StartedAt: outcome.StartedAt,
			EndedAt:   outcome.EndedAt,
		},
	})
}

func (h *Hub) broadcast(msg messages.Outbound) {
	for conn := range h.connections {
		conn.Send(msg)
	}
}
