// Package client is the player's side of the line protocol: a network client
// and the reconciler that turns authoritative snapshots into a smoothly
// ticking local countdown.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tecu23/duel-server/pkg/chess"
	"github.com/tecu23/duel-server/pkg/messages"
)

// DefaultRenderInterval is how often Run redraws the clocks
const DefaultRenderInterval = 30 * time.Millisecond

// View is what a client shows for both clocks at one instant
type View struct {
	White  time.Duration
	Black  time.Duration
	Turn   chess.Side
	Active bool
}

// Remaining returns the view's time for a side
func (v View) Remaining(side chess.Side) time.Duration {
	if side == chess.White {
		return v.White
	}
	return v.Black
}

// Reconciler extrapolates the last snapshot using only the rate of the local
// clock. Its absolute value is corrected through the offset measured when the
// snapshot arrived.
type Reconciler struct {
	mu sync.Mutex

	clk clockwork.Clock

	white      time.Duration
	black      time.Duration
	turn       chess.Side
	serverTime time.Time
	offset     time.Duration
	synced     bool
	active     bool
}

// NewReconciler creates a reconciler showing initial on both clocks until the
// first snapshot arrives
func NewReconciler(clk clockwork.Clock, initial time.Duration) *Reconciler {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	return &Reconciler{
		clk:   clk,
		white: initial,
		black: initial,
		turn:  chess.White,
	}
}

// Observe stores an authoritative snapshot and re-measures the offset between
// the server clock and the local one
func (r *Reconciler) Observe(white, black time.Duration, turn chess.Side, serverTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.white = white
	r.black = black
	r.turn = turn
	r.serverTime = serverTime
	r.offset = serverTime.Sub(r.clk.Now())
	r.synced = true
	r.active = true
}

// ObserveRecord feeds a server record to the reconciler. Records that carry no
// clock state are ignored, game_over freezes the clocks.
func (r *Reconciler) ObserveRecord(msg messages.Outbound) {
	switch m := msg.(type) {
	case messages.GameStart:
		r.Observe(messages.Duration(m.WhiteTime), messages.Duration(m.BlackTime), m.Turn, messages.Time(m.ServerTime))
	case messages.MoveAccepted:
		r.Observe(messages.Duration(m.WhiteTime), messages.Duration(m.BlackTime), m.Turn, messages.Time(m.ServerTime))
	case messages.GameOver:
		r.Stop()
	}
}

// Stop freezes both clocks at their current estimate
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.viewLocked()
	r.white, r.black = v.White, v.Black
	r.active = false
}

// Offset is the server clock minus the local clock as of the last snapshot
func (r *Reconciler) Offset() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.offset
}

// Remaining returns the estimated clocks right now
func (r *Reconciler) Remaining() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.viewLocked()
}

func (r *Reconciler) viewLocked() View {
	v := View{White: r.white, Black: r.black, Turn: r.turn, Active: r.active}
	if !r.synced || !r.active {
		return v
	}

	estimated := r.clk.Now().Add(r.offset)
	elapsed := estimated.Sub(r.serverTime)
	if elapsed < 0 {
		elapsed = 0
	}

	switch r.turn {
	case chess.White:
		v.White = clamp(r.white - elapsed)
	case chess.Black:
		v.Black = clamp(r.black - elapsed)
	}

	return v
}

// Run calls render every interval until ctx is done
func (r *Reconciler) Run(ctx context.Context, interval time.Duration, render func(View)) error {
	if interval <= 0 {
		interval = DefaultRenderInterval
	}

	ticker := r.clk.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			render(r.Remaining())
		}
	}
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
