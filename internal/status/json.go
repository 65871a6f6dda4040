package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/george-ags/lm-micra/internal/brew"
)

type document struct {
	RelayOn        bool        `json:"relay_on"`
	ShotID         string      `json:"shot_id,omitempty"`
	ShotElapsedS   float64     `json:"shot_elapsed_s"`
	Memory         memoryDoc   `json:"memory"`
	Memories       []memoryDoc `json:"memories"`
	FlowPoints     int         `json:"flow_points"`
	ScaleSwitch    bool        `json:"scale_switch"`
	ScaleConnected bool        `json:"scale_connected"`
	ScalePending   string      `json:"scale_pending,omitempty"`
	ShotsStarted   int         `json:"shots_started"`
	WatchdogTrips  int         `json:"watchdog_trips"`
	Scans          int         `json:"scans"`
	Saves          int         `json:"saves"`
	SaveErrors     int         `json:"save_errors"`
	MQTTConnected  bool        `json:"mqtt_connected"`
	StartedAt      string      `json:"started_at"`
	UptimeS        float64     `json:"uptime_s"`
	Broker         string      `json:"broker,omitempty"`
	SavePath       string      `json:"save_path,omitempty"`
}

type memoryDoc struct {
	Name      string  `json:"name"`
	Color     string  `json:"color"`
	Target    float64 `json:"target"`
	Overshoot float64 `json:"overshoot"`
	StopAt    float64 `json:"stop_at"`
}

func toMemoryDoc(m brew.Memory) memoryDoc {
	return memoryDoc{
		Name:      m.Name,
		Color:     m.Color,
		Target:    m.Target,
		Overshoot: m.Overshoot,
		StopAt:    m.StopWeight(),
	}
}

// FormatJSON renders a snapshot as the status document served at
// /index.json and embedded in lifecycle telemetry. now supplies the
// uptime reference.
func FormatJSON(s Snapshot, now time.Time) ([]byte, error) {
	doc := document{
		RelayOn:        s.Control.RelayOn,
		ShotID:         s.Control.ShotID,
		ShotElapsedS:   s.Control.ShotElapsed.Seconds(),
		Memory:         toMemoryDoc(s.Control.Current),
		Memories:       make([]memoryDoc, 0, len(s.Control.Memories)),
		FlowPoints:     s.Control.FlowCount,
		ScaleSwitch:    s.Control.ScaleSwitch,
		ScaleConnected: s.Control.ScaleConnected,
		ScalePending:   s.Control.PendingAddr,
		ShotsStarted:   s.Control.Counters.ShotsStarted,
		WatchdogTrips:  s.Control.Counters.WatchdogTrips,
		Scans:          s.Control.Counters.Scans,
		Saves:          s.Control.Counters.Saves,
		SaveErrors:     s.Control.Counters.SaveErrors,
		MQTTConnected:  s.MQTTConnected,
		Broker:         s.Broker,
		SavePath:       s.SavePath,
	}
	for _, m := range s.Control.Memories {
		doc.Memories = append(doc.Memories, toMemoryDoc(m))
	}
	if !s.StartTime.IsZero() {
		doc.StartedAt = s.StartTime.UTC().Format(time.RFC3339)
		doc.UptimeS = now.Sub(s.StartTime).Seconds()
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}
	return data, nil
}
