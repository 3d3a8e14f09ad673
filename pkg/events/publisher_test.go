package events

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.events)
}

func TestPublisher(t *testing.T) {
	t.Run("delivers only to subscribers of the type", func(t *testing.T) {
		// Given
		p := NewPublisher()
		started, ended := &recorder{}, &recorder{}
		p.Subscribe(EventMatchStarted, started.handle)
		p.Subscribe(EventMatchEnded, ended.handle)

		// When
		p.Publish(Event{Type: EventMatchStarted, MatchID: "m1"})

		// Then
		assert.Eventually(t, func() bool { return started.count() == 1 }, time.Second, 5*time.Millisecond)
		assert.Never(t, func() bool { return ended.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	})

	t.Run("all-events handlers see every type", func(t *testing.T) {
		p := NewPublisher()
		all := &recorder{}
		p.SubscribeAll(all.handle)

		p.Publish(Event{Type: EventPlayerJoined})
		p.Publish(Event{Type: EventMoveApplied})

		assert.Eventually(t, func() bool { return all.count() == 2 }, time.Second, 5*time.Millisecond)
	})

	t.Run("nil publisher is a no-op", func(t *testing.T) {
		var p *Publisher

		assert.NotPanics(t, func() { p.Publish(Event{Type: EventPlayerLeft}) })
	})
}

type fakeConn struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestNATSForwarder(t *testing.T) {
	t.Run("publishes the event as JSON under its subject", func(t *testing.T) {
		// Given
		conn := &fakeConn{}
		f := NewNATSForwarder(conn, "duel.events.", zap.NewNop())

		// When
		f.Handle(Event{
			Type:    EventMatchEnded,
			MatchID: "m1",
			Payload: MatchEndedPayload{Result: "1-0", Reason: "Game Over: 1-0 (Checkmate)", Moves: []string{"e2e4"}},
		})

		// Then
		require.Len(t, conn.subjects, 1)
		assert.Equal(t, "duel.events.match_ended", conn.subjects[0])

		var got map[string]any
		require.NoError(t, json.Unmarshal(conn.payloads[0], &got))
		assert.Equal(t, "MATCH_ENDED", got["type"])
		assert.Equal(t, "m1", got["match_id"])
		assert.Equal(t, "1-0", got["payload"].(map[string]any)["result"])
	})

	t.Run("publish failures are swallowed", func(t *testing.T) {
		conn := &fakeConn{err: errors.New("connection closed")}
		f := NewNATSForwarder(conn, "duel.events", zap.NewNop())

		assert.NotPanics(t, func() { f.Handle(Event{Type: EventPlayerJoined}) })
		assert.Empty(t, conn.subjects)
	})

	t.Run("forwards everything once subscribed", func(t *testing.T) {
		conn := &fakeConn{}
		p := NewPublisher()
		p.SubscribeAll(NewNATSForwarder(conn, "duel.events", zap.NewNop()).Handle)

		p.Publish(Event{Type: EventPlayerJoined})
		p.Publish(Event{Type: EventPlayerLeft})

		assert.Eventually(t, func() bool {
			conn.mu.Lock()
			defer conn.mu.Unlock()
			return len(conn.subjects) == 2
		}, time.Second, 5*time.Millisecond)
	})
}
