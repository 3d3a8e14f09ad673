// Package engine wraps the rules engine that decides move legality
package engine

import (
	"errors"
	"fmt"

	nchess "github.com/corentings/chess/v2"

	"github.com/tecu23/duel-server/pkg/chess"
)

// ErrIllegalMove is returned by Apply when the oracle refuses a move
var ErrIllegalMove = errors.New("illegal move")

// Oracle is the capability a session needs from a rules engine. Moves are in
// UCI notation (e.g. "e2e4", "e7e8q").
type Oracle interface {
	// Reset restores the initial position
	Reset()
	// FEN exports the current position
	FEN() string
	// Turn returns the side to move
	Turn() chess.Side
	// IsLegal reports whether the move is legal in the current position
	IsLegal(move string) bool
	// Apply plays the move on the current position
	Apply(move string) error
	// Outcome reports the result and method once the game is over
	Outcome() (result string, method string, over bool)
}

// ChessOracle is an Oracle backed by github.com/corentings/chess
type ChessOracle struct {
	game *nchess.Game
}

var _ Oracle = (*ChessOracle)(nil)

// NewChessOracle creates an oracle at the standard starting position
func NewChessOracle() *ChessOracle {
	return &ChessOracle{game: nchess.NewGame()}
}

// NewChessOracleFromFEN creates an oracle at an arbitrary position
func NewChessOracleFromFEN(fen string) (*ChessOracle, error) {
	option, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}

	return &ChessOracle{game: nchess.NewGame(option)}, nil
}

// Reset restores the standard starting position
func (o *ChessOracle) Reset() {
	o.game = nchess.NewGame()
}

// FEN exports the current position
func (o *ChessOracle) FEN() string {
	return o.game.FEN()
}

// Turn returns the side to move
func (o *ChessOracle) Turn() chess.Side {
	if o.game.Position().Turn() == nchess.White {
		return chess.White
	}
	return chess.Black
}

// IsLegal checks the move on a throwaway game built from the current FEN so
// the real game is never touched
func (o *ChessOracle) IsLegal(move string) bool {
	if o.game.Outcome() != nchess.NoOutcome {
		return false
	}

	option, err := nchess.FEN(o.game.FEN())
	if err != nil {
		return false
	}

	probe := nchess.NewGame(option)
	return probe.PushNotationMove(move, nchess.UCINotation{}, nil) == nil
}

// Apply plays the move on the current position
func (o *ChessOracle) Apply(move string) error {
	if err := o.game.PushNotationMove(move, nchess.UCINotation{}, nil); err != nil {
		return fmt.Errorf("%w %q: %v", ErrIllegalMove, move, err)
	}
	return nil
}

// Outcome reports the result ("1-0", "0-1", "1/2-1/2") and how it was reached
func (o *ChessOracle) Outcome() (string, string, bool) {
	outcome := o.game.Outcome()
	if outcome == nchess.NoOutcome {
		return "", "", false
	}

	return string(outcome), fmt.Sprint(o.game.Method()), true
}
