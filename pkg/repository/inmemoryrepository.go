package repository

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tecu23/duel-server/pkg/events"
)

// ErrMatchNotFound is returned when no finished match has the given ID
var ErrMatchNotFound = errors.New("match not found")

// MatchRecord is a finished match as kept in the archive
type MatchRecord struct {
	ID        string    `json:"id"`
	Result    string    `json:"result"`
	Method    string    `json:"method,omitempty"`
	Reason    string    `json:"reason"`
	Moves     []string  `json:"moves"`
	FinalFEN  string    `json:"final_fen"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// InMemoryMatchRepository keeps finished matches for the lifetime of the process
type InMemoryMatchRepository struct {
	matches map[string]MatchRecord
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository(logger *zap.Logger) *InMemoryMatchRepository {
	return &InMemoryMatchRepository{
		matches: make(map[string]MatchRecord),
		logger:  logger,
	}
}

// SaveMatch saves a match to the repository, replacing any record with the same ID
func (r *InMemoryMatchRepository) SaveMatch(record MatchRecord) error {
	if record.ID == "" {
		return errors.New("match record without ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.matches[record.ID] = record
	return nil
}

// GetMatch retrieves a match by ID
func (r *InMemoryMatchRepository) GetMatch(id string) (MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.matches[id]
	if !ok {
		return MatchRecord{}, ErrMatchNotFound
	}

	return record, nil
}

// ListMatches returns all finished matches, most recent first
func (r *InMemoryMatchRepository) ListMatches() []MatchRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]MatchRecord, 0, len(r.matches))
	for _, m := range r.matches {
		records = append(records, m)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].EndedAt.After(records[j].EndedAt)
	})

	return records
}

// Subscribe archives every match announced on the publisher as ended
func (r *InMemoryMatchRepository) Subscribe(publisher *events.Publisher) {
	publisher.Subscribe(events.EventMatchEnded, r.handleMatchEnded)
}

func (r *InMemoryMatchRepository) handleMatchEnded(event events.Event) {
	payload, ok := event.Payload.(events.MatchEndedPayload)
	if !ok {
		r.logger.Warn("unexpected MATCH_ENDED payload", zap.String("match_id", event.MatchID))
		return
	}

	record := MatchRecord{
		ID:        event.MatchID,
		Result:    payload.Result,
		Method:    payload.Method,
		Reason:    payload.Reason,
		Moves:     payload.Moves,
		FinalFEN:  payload.FEN,
		StartedAt: payload.StartedAt,
		EndedAt:   payload.EndedAt,
	}

	if err := r.SaveMatch(record); err != nil {
		r.logger.Error("failed to archive match", zap.String("match_id", event.MatchID), zap.Error(err))
		return
	}

	r.logger.Info("match archived", zap.String("match_id", record.ID), zap.String("result", record.Result))
}
