package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tecu23/duel-server/pkg/chess"
)

// Snapshot is the authoritative state handed to clients after every transition
type Snapshot struct {
	MatchID    uuid.UUID
	FEN        string
	Turn       chess.Side
	WhiteTime  time.Duration
	BlackTime  time.Duration
	ServerTime time.Time
}

// Remaining returns the snapshot's time for a side
func (s Snapshot) Remaining(side chess.Side) time.Duration {
	if side == chess.White {
		return s.WhiteTime
	}
	return s.BlackTime
}

// Possible results of a finished match
const (
	ResultWhiteWon = "1-0"
	ResultBlackWon = "0-1"
	ResultDraw     = "1/2-1/2"
)

// Methods by which a match can end outside the rules engine
const (
	MethodTimeout   = "Timeout"
	MethodAbandoned = "Abandoned"
)

// Outcome describes how a match ended
type Outcome struct {
	MatchID   uuid.UUID
	Result    string
	Method    string
	Snapshot  Snapshot
	Moves     []string
	StartedAt time.Time
	EndedAt   time.Time
}

// Description is the text shown to players
func (o Outcome) Description() string {
	if o.Method == "" {
		return "Game Over: " + o.Result
	}
	return fmt.Sprintf("Game Over: %s (%s)", o.Result, o.Method)
}

// winFor returns the result string awarding the match to side
func winFor(side chess.Side) string {
	if side == chess.White {
		return ResultWhiteWon
	}
	return ResultBlackWon
}

// Start is produced once per match when both players are ready
type Start struct {
	MatchID  uuid.UUID
	Snapshot Snapshot
	Players  []Player
}

// MoveResult is produced by an accepted move request
type MoveResult struct {
	Snapshot Snapshot
	Move     string
	// Applied is false when the mover's clock ran out before the move landed
	Applied bool
	// Outcome is set when the match ended with this request
	Outcome *Outcome
}
