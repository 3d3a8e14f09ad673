package game

import (
	"errors"

	"go.uber.org/zap"

	"github.com/tecu23/duel-server/pkg/chess"
)

// Submit validates a move request from side and, if accepted, charges the
// mover, hands the clock over and plays the move. A returned error is one of
// the policy errors and means nothing changed.
func (s *Session) Submit(side chess.Side, from, to chess.Square, promotion string) (MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return MoveResult{}, ErrNotActive
	}

	if side != s.oracle.Turn() {
		return MoveResult{}, ErrNotYourTurn
	}

	move, err := s.resolveMoveLocked(from, to, promotion)
	if err != nil {
		s.logger.Debug("move rejected",
			zap.String("side", string(side)),
			zap.Ints("from", from[:]),
			zap.Ints("to", to[:]),
			zap.Error(err),
		)
		return MoveResult{}, err
	}

	now := s.clk.Now()
	before := *s.clock

	s.clock.Switch(now)

	if s.cfg.EnforceFlagFall && s.clock.Flagged(side) {
		outcome := s.finishLocked(now, winFor(side.Opp()), MethodTimeout)
		return MoveResult{Snapshot: outcome.Snapshot, Move: move, Outcome: &outcome}, nil
	}

	if err := s.oracle.Apply(move); err != nil {
		*s.clock = before
		s.logger.Warn("oracle refused a move it reported legal", zap.String("move", move), zap.Error(err))
		return MoveResult{}, ErrIllegalMove
	}

	s.moves = append(s.moves, move)
	s.ply++

	res := MoveResult{
		Snapshot: s.snapshotLocked(now),
		Move:     move,
		Applied:  true,
	}

	if result, method, over := s.oracle.Outcome(); over {
		outcome := s.finishLocked(now, result, method)
		res.Outcome = &outcome
	} else {
		s.armFlagTimerLocked()
	}

	s.logger.Debug("move applied",
		zap.String("side", string(side)),
		zap.String("move", move),
		zap.Duration("white_time", res.Snapshot.WhiteTime),
		zap.Duration("black_time", res.Snapshot.BlackTime),
	)

	return res, nil
}

// resolveMoveLocked translates board coordinates to the oracle's notation and
// checks legality. A pawn reaching the last rank without a promotion piece is
// promoted to a queen.
func (s *Session) resolveMoveLocked(from, to chess.Square, promotion string) (string, error) {
	move, err := chess.MoveUCI(from, to, promotion)
	if err != nil {
		if errors.Is(err, chess.ErrOutOfRange) {
			return "", ErrInvalidCoordinates
		}
		return "", ErrIllegalMove
	}

	if s.oracle.IsLegal(move) {
		return move, nil
	}

	if promotion == "" && s.oracle.IsLegal(move+"q") {
		return move + "q", nil
	}

	return "", ErrIllegalMove
}
