package messages

import (
	"github.com/tecu23/duel-server/pkg/chess"
)

// Outbound is a record sent by the server. The set of implementations is closed.
type Outbound interface {
	Kind() Kind
	outbound()
}

// JoinAccepted tells a new connection which side it plays
type JoinAccepted struct {
	Color chess.Side `json:"color"`
}

// JoinRejected is sent to a connection that could not be seated
type JoinRejected struct {
	Reason string `json:"reason"`
}

// GameStart is sent to each player when the match begins. Times are seconds,
// ServerTime is Unix seconds.
type GameStart struct {
	Color      chess.Side `json:"color"`
	FEN        string     `json:"fen"`
	WhiteTime  float64    `json:"white_time"`
	BlackTime  float64    `json:"black_time"`
	Turn       chess.Side `json:"turn"`
	ServerTime float64    `json:"server_time"`
}

// MoveAccepted is broadcast after every accepted move
type MoveAccepted struct {
	FEN        string     `json:"fen"`
	Turn       chess.Side `json:"turn"`
	WhiteTime  float64    `json:"white_time"`
	BlackTime  float64    `json:"black_time"`
	ServerTime float64    `json:"server_time"`
}

// IllegalMove is sent to the player whose request was refused
type IllegalMove struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

// GameOver is broadcast when the match ends
type GameOver struct {
	Reason string `json:"reason"`
	Result string `json:"result,omitempty"`
}

// Kind implementations

func (JoinAccepted) Kind() Kind { return KindJoinAccepted }
func (JoinRejected) Kind() Kind { return KindJoinRejected }
func (GameStart) Kind() Kind    { return KindGameStart }
func (MoveAccepted) Kind() Kind { return KindMoveAccepted }
func (IllegalMove) Kind() Kind  { return KindIllegalMove }
func (GameOver) Kind() Kind     { return KindGameOver }

func (JoinAccepted) outbound() {}
func (JoinRejected) outbound() {}
func (GameStart) outbound()    {}
func (MoveAccepted) outbound() {}
func (IllegalMove) outbound()  {}
func (GameOver) outbound()     {}
