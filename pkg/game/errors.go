package game

import "errors"

// Policy errors. A rejected request never mutates the session.
var (
	ErrNotActive          = errors.New("session not active")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrIllegalMove        = errors.New("illegal move")
)

// Registry errors
var (
	ErrSessionFull   = errors.New("session full")
	ErrUnknownPlayer = errors.New("unknown player")
)

// RejectionCode returns the stable machine code for a policy error
func RejectionCode(err error) string {
	switch {
	case errors.Is(err, ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, ErrInvalidCoordinates):
		return "invalid_coordinates"
	default:
		return "illegal_move"
	}
}

// RejectionReason returns the human readable notice for a policy error
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrNotActive):
		return "Game not active"
	case errors.Is(err, ErrNotYourTurn):
		return "Not your turn"
	case errors.Is(err, ErrInvalidCoordinates):
		return "Invalid coordinates"
	default:
		return "Illegal move"
	}
}
