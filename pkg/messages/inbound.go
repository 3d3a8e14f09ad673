// Package messages defines the line-delimited records exchanged between
// clients and the server
package messages

import (
	"github.com/tecu23/duel-server/pkg/chess"
)

// Kind discriminates records on the wire through the "type" field
type Kind string

// Client to server kinds
const (
	KindReady Kind = "ready"
	KindMove  Kind = "move"
)

// Server to client kinds
const (
	KindJoinAccepted Kind = "join_accepted"
	KindJoinRejected Kind = "join_rejected"
	KindGameStart    Kind = "game_start"
	KindMoveAccepted Kind = "move_accepted"
	KindIllegalMove  Kind = "illegal_move"
	KindGameOver     Kind = "game_over"
)

// Inbound is a record sent by a client. The set of implementations is closed.
type Inbound interface {
	Kind() Kind
	inbound()
}

// Ready signals that the player wants the match to start
type Ready struct{}

// Kind implements Inbound
func (Ready) Kind() Kind { return KindReady }
func (Ready) inbound()   {}

// Move requests a move from one square to another
type Move struct {
	From      chess.Square `json:"from"`
	To        chess.Square `json:"to"`
	Promotion string       `json:"promotion,omitempty"`
	Timestamp float64      `json:"timestamp"` // Client clock, advisory only
}

// Kind implements Inbound
func (Move) Kind() Kind { return KindMove }
func (Move) inbound()   {}
