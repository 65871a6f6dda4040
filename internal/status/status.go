// Package status tracks a point-in-time view of the whole controller for
// the web page and lifecycle telemetry.
package status

import (
	"sync"
	"time"

	"github.com/george-ags/lm-micra/internal/brew"
	"github.com/george-ags/lm-micra/internal/control"
)

// Snapshot is a copyable view of the controller.
type Snapshot struct {
	Control       control.Status
	MQTTConnected bool
	StartTime     time.Time
	Broker        string
	SavePath      string
}

// Tracker holds the latest snapshot behind a lock. The main cycle
// writes; the web server and telemetry read.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker seeds a tracker with the process start time and the
// configuration echoed on the status page.
func NewTracker(start time.Time, broker, savePath string) *Tracker {
	return &Tracker{snap: Snapshot{
		StartTime: start,
		Broker:    broker,
		SavePath:  savePath,
	}}
}

// Update replaces the control view.
func (t *Tracker) Update(cs control.Status) {
	t.mu.Lock()
	t.snap.Control = cs
	t.mu.Unlock()
}

// SetMQTTConnected records the broker link state.
func (t *Tracker) SetMQTTConnected(up bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = up
	t.mu.Unlock()
}

// Snapshot returns a copy of the current view. The memory list is
// duplicated so callers may hold the snapshot across updates.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.snap
	mems := make([]brew.Memory, len(s.Control.Memories))
	copy(mems, s.Control.Memories)
	s.Control.Memories = mems
	return s
}
