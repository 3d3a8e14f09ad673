// Package game holds the single authoritative match: who is seated, whether
// the match is running, the position and the clock.
package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tecu23/duel-server/pkg/chess"
	"github.com/tecu23/duel-server/pkg/engine"
)

// MaxPlayers is the number of seats in a session
const MaxPlayers = 2

// Player is a seated connection
type Player struct {
	ID    uuid.UUID
	Side  chess.Side
	Ready bool
}

// Config controls how matches in a session are played
type Config struct {
	TimeControl     chess.TimeControl
	EnforceFlagFall bool
}

// Session is the single authoritative match. Every read or mutation of its
// seats, position and clock happens under mu.
type Session struct {
	mu sync.Mutex

	players []*Player
	active  bool

	matchID   uuid.UUID
	startedAt time.Time
	moves     []string
	ply       int

	oracle engine.Oracle
	clock  *chess.Clock

	clk       clockwork.Clock
	flagTimer clockwork.Timer
	onTimeout func(Outcome)

	cfg    Config
	logger *zap.Logger
}

// NewSession creates an empty session. The oracle is owned by the session
// from here on.
func NewSession(oracle engine.Oracle, clk clockwork.Clock, cfg Config, logger *zap.Logger) *Session {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	return &Session{
		oracle: oracle,
		clock:  chess.NewClock(cfg.TimeControl),
		clk:    clk,
		cfg:    cfg,
		logger: logger,
	}
}

// OnTimeout registers the callback invoked, outside the lock, when a flag
// falls between moves
func (s *Session) OnTimeout(fn func(Outcome)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onTimeout = fn
}

// Accept seats a new player. White goes to the first free seat.
func (s *Session) Accept(id uuid.UUID) (chess.Side, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.players) >= MaxPlayers {
		return "", ErrSessionFull
	}

	side := chess.White
	for _, p := range s.players {
		if p.Side == chess.White {
			side = chess.Black
		}
	}

	s.players = append(s.players, &Player{ID: id, Side: side})

	s.logger.Info("player seated",
		zap.String("player_id", id.String()),
		zap.String("side", string(side)),
		zap.Int("players", len(s.players)),
	)

	return side, nil
}

// MarkReady flags the player as ready. Repeated calls are harmless.
func (s *Session) MarkReady(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findLocked(id)
	if p == nil {
		return ErrUnknownPlayer
	}

	if !p.Ready {
		p.Ready = true
		s.logger.Info("player ready", zap.String("player_id", id.String()), zap.String("side", string(p.Side)))
	}

	return nil
}

// TryStart starts the match if both seats are filled and ready. It returns
// false when nothing changed, including when a match is already running.
func (s *Session) TryStart() (Start, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active || len(s.players) != MaxPlayers {
		return Start{}, false
	}
	for _, p := range s.players {
		if !p.Ready {
			return Start{}, false
		}
	}

	now := s.clk.Now()

	s.active = true
	s.matchID = uuid.New()
	s.startedAt = now
	s.moves = nil
	s.ply = 0
	s.oracle.Reset()
	s.clock.Reset(s.cfg.TimeControl, now)
	s.armFlagTimerLocked()

	s.logger.Info("match started", zap.String("match_id", s.matchID.String()))

	return Start{
		MatchID:  s.matchID,
		Snapshot: s.snapshotLocked(now),
		Players:  s.playersLocked(),
	}, true
}

// Remove frees the player's seat. If a match was running it is abandoned and
// the outcome, awarding the win to the remaining side, is returned.
func (s *Session) Remove(id uuid.UUID) *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.players {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	leaving := s.players[idx]
	s.players = append(s.players[:idx], s.players[idx+1:]...)

	s.logger.Info("player removed",
		zap.String("player_id", id.String()),
		zap.String("side", string(leaving.Side)),
	)

	if !s.active {
		return nil
	}

	now := s.clk.Now()
	s.clock.Tick(now)
	outcome := s.finishLocked(now, winFor(leaving.Side.Opp()), MethodAbandoned)
	return &outcome
}

// Players returns a copy of the seated players
func (s *Session) Players() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.playersLocked()
}

// Active reports whether a match is running
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

// Snapshot returns the current state as of the clock's last accounting event
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked(s.clock.LastTick())
}

func (s *Session) findLocked(id uuid.UUID) *Player {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) playersLocked() []Player {
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	return out
}

func (s *Session) snapshotLocked(now time.Time) Snapshot {
	return Snapshot{
		MatchID:    s.matchID,
		FEN:        s.oracle.FEN(),
		Turn:       s.oracle.Turn(),
		WhiteTime:  s.clock.Remaining(chess.White),
		BlackTime:  s.clock.Remaining(chess.Black),
		ServerTime: now,
	}
}

// finishLocked ends the running match. Ready flags are cleared so both
// players have to ready up again for a rematch.
func (s *Session) finishLocked(now time.Time, result, method string) Outcome {
	s.active = false
	s.stopFlagTimerLocked()

	for _, p := range s.players {
		p.Ready = false
	}

	moves := make([]string, len(s.moves))
	copy(moves, s.moves)

	outcome := Outcome{
		MatchID:   s.matchID,
		Result:    result,
		Method:    method,
		Snapshot:  s.snapshotLocked(now),
		Moves:     moves,
		StartedAt: s.startedAt,
		EndedAt:   now,
	}

	s.logger.Info("match ended",
		zap.String("match_id", s.matchID.String()),
		zap.String("result", result),
		zap.String("method", method),
		zap.Int("moves", len(moves)),
	)

	return outcome
}

func (s *Session) armFlagTimerLocked() {
	s.stopFlagTimerLocked()

	if !s.cfg.EnforceFlagFall || !s.active {
		return
	}

	matchID, ply := s.matchID, s.ply
	remaining := s.clock.Remaining(s.clock.Running())

	s.flagTimer = s.clk.AfterFunc(remaining, func() {
		s.expire(matchID, ply)
	})
}

func (s *Session) stopFlagTimerLocked() {
	if s.flagTimer != nil {
		s.flagTimer.Stop()
		s.flagTimer = nil
	}
}

// expire runs when the running side's allotment should be used up. A stale
// timer (another move landed, or another match started) does nothing.
func (s *Session) expire(matchID uuid.UUID, ply int) {
	s.mu.Lock()

	if !s.active || s.matchID != matchID || s.ply != ply {
		s.mu.Unlock()
		return
	}

	now := s.clk.Now()
	s.clock.Tick(now)

	running := s.clock.Running()
	if !s.clock.Flagged(running) {
		s.armFlagTimerLocked()
		s.mu.Unlock()
		return
	}

	outcome := s.finishLocked(now, winFor(running.Opp()), MethodTimeout)
	callback := s.onTimeout
	s.mu.Unlock()

	s.logger.Info("flag fell", zap.String("side", string(running)))

	if callback != nil {
		callback(outcome)
	}
}

// String is used in logs
func (p Player) String() string {
	return fmt.Sprintf("%s(%s)", p.Side, p.ID)
}
