// Package input contains pure edge-detection logic for the panel buttons
// and the brew paddle. This package has NO hardware dependencies (no GPIO,
// OS, or time.Sleep). Levels are sampled elsewhere and fed in with explicit
// timestamps.
package input

import "time"

// EventType is a debounced button transition.
type EventType string

const (
	Pressed  EventType = "PRESSED"
	Released EventType = "RELEASED"
	Held     EventType = "HELD"
)

// Config sets the timing behavior of one button.
type Config struct {
	// Debounce is how long a level change must persist before it becomes
	// a transition. Zero accepts every change immediately; the paddle
	// runs undebounced because the relay watchdog does its own two-read
	// confirmation.
	Debounce time.Duration

	// HoldTime is how long a stable press lasts before a Held event.
	// Zero disables hold detection.
	HoldTime time.Duration

	// HoldRepeat re-emits Held every HoldTime while the press continues.
	HoldRepeat bool
}

// Button tracks one physical button. The first sample establishes the
// baseline level without emitting events, so a process started with the
// paddle already closed does not begin a phantom shot.
type Button struct {
	cfg Config

	baselined    bool
	stable       bool
	pending      bool
	hasPending   bool
	pendingSince time.Time

	pressedAt time.Time // zero until a Pressed edge is seen
	holds     int
}

// NewButton creates a tracker with the given timing configuration.
func NewButton(cfg Config) *Button {
	return &Button{cfg: cfg}
}

// Process feeds one sampled level and returns the events it produced, in
// order. now must be non-decreasing across calls.
func (b *Button) Process(pressed bool, now time.Time) []EventType {
	if !b.baselined {
		b.baselined = true
		b.stable = pressed
		return nil
	}

	var events []EventType

	if pressed != b.stable {
		if b.cfg.Debounce <= 0 {
			events = append(events, b.transition(pressed, now))
		} else if !b.hasPending || b.pending != pressed {
			b.pending = pressed
			b.hasPending = true
			b.pendingSince = now
		} else if now.Sub(b.pendingSince) >= b.cfg.Debounce {
			b.hasPending = false
			events = append(events, b.transition(pressed, now))
		}
	} else {
		b.hasPending = false
	}

	// Hold detection runs on the stable state so a bouncing release does
	// not restart the hold clock. A button already down at baseline never
	// holds: pressedAt is only set by a Pressed edge.
	if b.stable && b.cfg.HoldTime > 0 && !b.pressedAt.IsZero() {
		if b.holds == 0 || b.cfg.HoldRepeat {
			due := b.pressedAt.Add(time.Duration(b.holds+1) * b.cfg.HoldTime)
			if !now.Before(due) {
				b.holds++
				events = append(events, Held)
			}
		}
	}

	return events
}

func (b *Button) transition(pressed bool, now time.Time) EventType {
	b.stable = pressed
	if pressed {
		b.pressedAt = now
		b.holds = 0
		return Pressed
	}
	return Released
}

// IsPressed reports the debounced level.
func (b *Button) IsPressed() bool {
	return b.stable
}
