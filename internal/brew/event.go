package brew

import "time"

// EventType identifies a brew lifecycle event.
type EventType string

const (
	EventShotStarted   EventType = "SHOT_STARTED"
	EventShotEnded     EventType = "SHOT_ENDED"
	EventMemoryRotated EventType = "MEMORY_ROTATED"
)

// Event is a brew lifecycle record handed to telemetry. Memory and Target
// describe the current memory at the time of the event; Duration is set on
// SHOT_ENDED only.
type Event struct {
	Timestamp time.Time
	Type      EventType
	ShotID    string
	Memory    string
	Target    float64
	Duration  time.Duration
}
