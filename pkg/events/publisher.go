package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

// Match lifecycle events
const (
	EventPlayerJoined  EventType = "PLAYER_JOINED"
	EventPlayerLeft    EventType = "PLAYER_LEFT"
	EventMatchStarted  EventType = "MATCH_STARTED"
	EventMoveApplied   EventType = "MOVE_APPLIED"
	EventMatchEnded    EventType = "MATCH_ENDED"
	EventJoinRejected  EventType = "JOIN_REJECTED"
	EventAllEventTypes EventType = "*"
)

// Event represents an event in the system
type Event struct {
	Type    EventType   `json:"type"`
	MatchID string      `json:"match_id,omitempty"` // Empty for events outside a match
	Payload interface{} `json:"payload,omitempty"`
}

// PlayerPayload accompanies PLAYER_JOINED, PLAYER_LEFT and JOIN_REJECTED
type PlayerPayload struct {
	PlayerID   string `json:"player_id"`
	Side       string `json:"side,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
}

// MatchStartedPayload accompanies MATCH_STARTED
type MatchStartedPayload struct {
	White     string    `json:"white"`
	Black     string    `json:"black"`
	FEN       string    `json:"fen"`
	WhiteTime float64   `json:"white_time"`
	BlackTime float64   `json:"black_time"`
	StartedAt time.Time `json:"started_at"`
}

// MoveAppliedPayload accompanies MOVE_APPLIED
type MoveAppliedPayload struct {
	Side      string  `json:"side"`
	Move      string  `json:"move"`
	FEN       string  `json:"fen"`
	WhiteTime float64 `json:"white_time"`
	BlackTime float64 `json:"black_time"`
}

// MatchEndedPayload accompanies MATCH_ENDED
type MatchEndedPayload struct {
	Result    string    `json:"result"`
	Method    string    `json:"method,omitempty"`
	Reason    string    `json:"reason"`
	FEN       string    `json:"fen"`
	Moves     []string  `json:"moves"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Handler is a function that processes events
type Handler func(event Event)

// Publisher is the central event publisher
type Publisher struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
}

// NewPublisher creates a new event publisher
func NewPublisher() *Publisher {
	return &Publisher{
		subscribers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for a specific event type
func (p *Publisher) Subscribe(eventType EventType, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.subscribers[eventType] = append(p.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (p *Publisher) SubscribeAll(handler Handler) {
	p.Subscribe(EventAllEventTypes, handler)
}

// Publish broadcasts an event to its subscribers and to the "all events"
// handlers. Handlers run concurrently and must not assume ordering.
func (p *Publisher) Publish(event Event) {
	if p == nil {
		return
	}

	p.mu.RLock()
	handlers := p.subscribers[event.Type]
	allHandlers := p.subscribers[EventAllEventTypes]
	p.mu.RUnlock()

	for _, handler := range handlers {
		go handler(event)
	}

	for _, handler := range allHandlers {
		go handler(event)
	}
}
