// Package mqtt publishes brew and lifecycle telemetry.
//
// Two topics: TopicEvents carries per-shot brew events at QoS 0 (losing
// one is harmless, the next shot tells the story); TopicSystem carries
// STARTUP and SHUTDOWN at QoS 1 retained, so a dashboard subscribing
// late still learns the last lifecycle state.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/george-ags/lm-micra/internal/brew"
)

// Topic names.
const (
	TopicEvents = "espresso/lm-micra/events"
	TopicSystem = "espresso/lm-micra/system"
)

// System event kinds.
const (
	SystemStartup  = "STARTUP"
	SystemShutdown = "SHUTDOWN"
)

// Publisher sends telemetry to the broker.
type Publisher interface {
	// PublishEvent sends a brew event payload to TopicEvents.
	PublishEvent(payload []byte) error

	// PublishSystem sends a lifecycle payload to TopicSystem.
	PublishSystem(payload []byte) error

	// Close disconnects from the broker.
	Close()
}

// ConnectionStatus is implemented by publishers that know their link
// state.
type ConnectionStatus interface {
	Connected() bool
}

type brewPayload struct {
	Espresso brewBody `json:"espresso"`
}

type brewBody struct {
	TS       string  `json:"ts"`
	Event    string  `json:"event"`
	ShotID   string  `json:"shot_id,omitempty"`
	Memory   string  `json:"memory"`
	Target   float64 `json:"target"`
	Duration float64 `json:"duration_s,omitempty"`
}

// FormatBrewEvent renders a brew event for TopicEvents.
func FormatBrewEvent(ev brew.Event) ([]byte, error) {
	body := brewBody{
		TS:     ev.Timestamp.UTC().Format(time.RFC3339),
		Event:  string(ev.Type),
		ShotID: ev.ShotID,
		Memory: ev.Memory,
		Target: ev.Target,
	}
	if ev.Duration > 0 {
		body.Duration = ev.Duration.Seconds()
	}
	data, err := json.Marshal(brewPayload{Espresso: body})
	if err != nil {
		return nil, fmt.Errorf("encode brew event: %w", err)
	}
	return data, nil
}

type systemPayload struct {
	System systemBody `json:"system"`
}

type systemBody struct {
	TS     string          `json:"ts"`
	Event  string          `json:"event"`
	Status json.RawMessage `json:"status,omitempty"`
}

// FormatSystemEvent renders a lifecycle event for TopicSystem. status is
// an optional pre-rendered status document to embed; nil omits it.
func FormatSystemEvent(kind string, ts time.Time, status json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(systemPayload{System: systemBody{
		TS:     ts.UTC().Format(time.RFC3339),
		Event:  kind,
		Status: status,
	}})
	if err != nil {
		return nil, fmt.Errorf("encode system event: %w", err)
	}
	return data, nil
}
