// Package chess defines the board coordinates, sides and clock of a match
package chess

import (
	"fmt"
	"time"
)

// DefaultInitialTime is the allotment each side starts with when none is configured
const DefaultInitialTime = 2 * time.Minute

// TimeControl defines the time settings for a match
type TimeControl struct {
	Initial   time.Duration // Starting allotment for both sides
	Increment time.Duration // Added to the mover after every accepted move
}

// Clock accounts for the two countdowns of a match. Only the running side's
// countdown decreases, and neither value drops below zero.
//
// Clock is not safe for concurrent use; the owning session serializes access.
type Clock struct {
	white time.Duration
	black time.Duration

	increment time.Duration

	running Side

	lastTick time.Time
}

// NewClock creates a new clock with the given time control, white to run
func NewClock(tc TimeControl) *Clock {
	if tc.Initial <= 0 {
		tc.Initial = DefaultInitialTime
	}

	return &Clock{
		white:     tc.Initial,
		black:     tc.Initial,
		increment: tc.Increment,
		running:   White,
	}
}

// Reset restores both allotments, gives the move to white and takes now as the baseline
func (c *Clock) Reset(tc TimeControl, now time.Time) {
	*c = *NewClock(tc)
	c.lastTick = now
}

// Tick charges the running side for the time since the last tick. The first
// tick only records the baseline.
func (c *Clock) Tick(now time.Time) {
	if c.lastTick.IsZero() {
		c.lastTick = now
		return
	}

	elapsed := now.Sub(c.lastTick)
	if elapsed < 0 {
		elapsed = 0
	}
	c.lastTick = now

	if c.running == White {
		c.white = clamp(c.white - elapsed)
	} else {
		c.black = clamp(c.black - elapsed)
	}
}

// Switch charges the side that just moved, credits its increment and hands
// the clock to the other side
func (c *Clock) Switch(now time.Time) {
	c.Tick(now)

	if c.increment > 0 && c.Remaining(c.running) > 0 {
		if c.running == White {
			c.white += c.increment
		} else {
			c.black += c.increment
		}
	}

	c.running = c.running.Opp()
}

// Remaining returns the time left for a side as of the last tick
func (c *Clock) Remaining(s Side) time.Duration {
	if s == White {
		return c.white
	}
	return c.black
}

// Running returns the side whose countdown is active
func (c *Clock) Running() Side {
	return c.running
}

// LastTick returns the server time of the last accounting event
func (c *Clock) LastTick() time.Time {
	return c.lastTick
}

// Flagged reports whether the side has no time left
func (c *Clock) Flagged(s Side) bool {
	return c.Remaining(s) <= 0
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// FormatClockTime formats a duration as m:ss.mmm (e.g. "1:59.250")
func FormatClockTime(d time.Duration) string {
	d = clamp(d)

	ms := d.Milliseconds()
	minutes := ms / 60000
	seconds := (ms / 1000) % 60

	return fmt.Sprintf("%d:%02d.%03d", minutes, seconds, ms%1000)
}
