// Package brew contains the pure domain state of the brew controller:
// brew-weight memories, the memory ring, the flow-rate history, and the
// events emitted by the shot lifecycle. This package has NO external
// dependencies (no GPIO, Bluetooth, OS, or time.Sleep). Time is always
// injectable via time.Time parameters.
package brew

import "fmt"

// Default profile values for a fresh memory (grams).
const (
	DefaultTarget    = 36.0
	DefaultOvershoot = 1.0
)

// overshootLimit bounds the learned overshoot correction. A reading that
// would push the correction outside ±overshootLimit grams is treated as a
// miscalibrated scale and rejected rather than written into the memory.
const overshootLimit = 10.0

// Memory is a named brew-weight profile. Target is the desired settled
// weight; Overshoot is the learned mass that keeps dripping after shutoff
// and is subtracted from Target to get the stop weight.
type Memory struct {
	Name      string  `json:"name"`
	Color     string  `json:"color"`
	Target    float64 `json:"target"`
	Overshoot float64 `json:"overshoot"`
}

// DefaultMemories returns the three first-run profiles. This is also the
// fallback when the persisted ring cannot be loaded.
func DefaultMemories() []Memory {
	return []Memory{
		{Name: "A", Color: "#ff1303", Target: DefaultTarget, Overshoot: DefaultOvershoot},
		{Name: "B", Color: "#25a602", Target: DefaultTarget, Overshoot: DefaultOvershoot},
		{Name: "C", Color: "#376efa", Target: DefaultTarget, Overshoot: DefaultOvershoot},
	}
}

// StopWeight returns the weight at which the shot should stop so that the
// settled weight lands on Target. Value receiver so templates can call it
// on copies.
func (m Memory) StopWeight() float64 {
	return m.Target - m.Overshoot
}

// LearnOvershoot folds an observed settled weight into the overshoot
// correction. The candidate correction must stay within ±10 g; outside that
// range the memory is left unchanged and an error is returned.
func (m *Memory) LearnOvershoot(observed float64) error {
	candidate := m.Overshoot + (observed - m.Target)
	if candidate > overshootLimit || candidate < -overshootLimit {
		return fmt.Errorf("new overshoot %.2f outside safe range", candidate)
	}
	m.Overshoot = candidate
	return nil
}

// Ring is an ordered rotation of memories. The front element is the current
// memory. Rotation moves a head index only; no element is copied or lost.
// Not safe for concurrent use — the control manager serializes access.
type Ring struct {
	mems  []*Memory
	front int
}

// NewRing builds a ring from the given profiles. The values are copied so
// ring state never aliases the caller's slice. An empty argument falls back
// to DefaultMemories.
func NewRing(mems []Memory) *Ring {
	if len(mems) == 0 {
		mems = DefaultMemories()
	}
	r := &Ring{mems: make([]*Memory, len(mems))}
	for i := range mems {
		m := mems[i]
		r.mems[i] = &m
	}
	return r
}

// Current returns the front memory. The pointer remains valid across
// rotations.
func (r *Ring) Current() *Memory {
	return r.mems[r.front]
}

// RotateForward moves the front memory to the back.
func (r *Ring) RotateForward() {
	r.front = (r.front + 1) % len(r.mems)
}

// Len returns the number of memories in the ring.
func (r *Ring) Len() int {
	return len(r.mems)
}

// Snapshot returns deep copies of the memories in rotation order, current
// first. Persistence operates on snapshots so serialization never races the
// live ring.
func (r *Ring) Snapshot() []Memory {
	out := make([]Memory, len(r.mems))
	for i := range r.mems {
		out[i] = *r.mems[(r.front+i)%len(r.mems)]
	}
	return out
}
