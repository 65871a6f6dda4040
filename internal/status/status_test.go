package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/george-ags/lm-micra/internal/brew"
	"github.com/george-ags/lm-micra/internal/control"
)

var testStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestTrackerUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(testStart, "tcp://broker:1883", "memory.save")

	tr.Update(control.Status{RelayOn: true, ShotID: "shot-1"})
	tr.SetMQTTConnected(true)

	snap := tr.Snapshot()
	if !snap.Control.RelayOn || snap.Control.ShotID != "shot-1" {
		t.Errorf("expected control view to carry over, got %+v", snap.Control)
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTT connected")
	}
	if !snap.StartTime.Equal(testStart) {
		t.Errorf("expected start time %v, got %v", testStart, snap.StartTime)
	}
	if snap.Broker != "tcp://broker:1883" || snap.SavePath != "memory.save" {
		t.Errorf("expected configuration echoed, got broker=%q save=%q", snap.Broker, snap.SavePath)
	}
}

func TestTrackerSnapshotIsolatesMemories(t *testing.T) {
	tr := NewTracker(testStart, "", "")
	tr.Update(control.Status{Memories: []brew.Memory{{Name: "A", Target: 36.0}}})

	snap := tr.Snapshot()
	snap.Control.Memories[0].Target = 99.0

	if got := tr.Snapshot().Control.Memories[0].Target; got != 36.0 {
		t.Errorf("expected tracker unaffected by snapshot edits, got %g", got)
	}
}

func TestFormatJSON(t *testing.T) {
	mem := brew.Memory{Name: "B", Color: "#25a602", Target: 40.5, Overshoot: 2.5}
	snap := Snapshot{
		Control: control.Status{
			RelayOn:        true,
			ShotID:         "shot-1",
			ShotElapsed:    12500 * time.Millisecond,
			Current:        mem,
			Memories:       []brew.Memory{mem},
			FlowCount:      42,
			ScaleSwitch:    true,
			ScaleConnected: true,
			Counters: control.Counters{
				ShotsStarted:  3,
				WatchdogTrips: 1,
				Scans:         7,
				Saves:         5,
			},
		},
		MQTTConnected: true,
		StartTime:     testStart,
		Broker:        "tcp://broker:1883",
		SavePath:      "memory.save",
	}

	got, err := FormatJSON(snap, testStart.Add(90*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{
  "relay_on": true,
  "shot_id": "shot-1",
  "shot_elapsed_s": 12.5,
  "memory": {
    "name": "B",
    "color": "#25a602",
    "target": 40.5,
    "overshoot": 2.5,
    "stop_at": 38
  },
  "memories": [
    {
      "name": "B",
      "color": "#25a602",
      "target": 40.5,
      "overshoot": 2.5,
      "stop_at": 38
    }
  ],
  "flow_points": 42,
  "scale_switch": true,
  "scale_connected": true,
  "shots_started": 3,
  "watchdog_trips": 1,
  "scans": 7,
  "saves": 5,
  "save_errors": 0,
  "mqtt_connected": true,
  "started_at": "2026-01-01T12:00:00Z",
  "uptime_s": 90,
  "broker": "tcp://broker:1883",
  "save_path": "memory.save"
}`
	if string(got) != want {
		t.Errorf("status document mismatch\ngot:  %s\nwant: %s", got, want)
	}
}

func TestFormatJSONZeroSnapshot(t *testing.T) {
	got, err := FormatJSON(Snapshot{}, testStart)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(got, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"shot_id", "scale_pending", "broker", "save_path"} {
		if _, ok := doc[key]; ok {
			t.Errorf("expected %q omitted from zero snapshot", key)
		}
	}
	if doc["started_at"] != "" {
		t.Errorf("expected empty started_at before start time is known, got %v", doc["started_at"])
	}
	mems, ok := doc["memories"].([]interface{})
	if !ok || len(mems) != 0 {
		t.Errorf("expected empty memories list, got %v", doc["memories"])
	}
}
