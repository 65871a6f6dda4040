package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/george-ags/lm-micra/internal/brew"
	"github.com/george-ags/lm-micra/internal/control"
	"github.com/george-ags/lm-micra/internal/gpio"
	"github.com/george-ags/lm-micra/internal/mqtt"
	"github.com/george-ags/lm-micra/internal/scale"
	"github.com/george-ags/lm-micra/internal/status"
	"github.com/george-ags/lm-micra/internal/store"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestIntegrationFullShot drives a complete brew through the real manager
// with fake hardware: paddle press starts the shot, the watchdog ends it
// on release, and the telemetry pipeline renders every event.
func TestIntegrationFullShot(t *testing.T) {
	relay := gpio.NewFakeOutput()
	paddle := gpio.NewFakeInput(false)
	st := &store.FakeStore{}
	pub := &mqtt.FakePublisher{}

	notify := func(ev brew.Event) {
		data, err := mqtt.FormatBrewEvent(ev)
		if err != nil {
			t.Errorf("format event: %v", err)
			return
		}
		pub.PublishEvent(data)
	}

	cfg := control.Config{
		WatchdogPoll:    2 * time.Millisecond,
		WatchdogConfirm: time.Millisecond,
	}
	mgr := control.New(cfg, relay, paddle, nil, st, notify)
	dev := &scale.FakeDevice{}
	mgr.SetTareHandler(dev)

	mgr.Start()
	defer mgr.Stop()

	// Paddle down: the shot starts, the scale is tared.
	paddle.Set(true)
	mgr.StartShot()
	if !mgr.RelayOn() {
		t.Fatal("expected relay on after paddle press")
	}
	if dev.Tares() != 1 {
		t.Errorf("expected 1 tare at shot start, got %d", dev.Tares())
	}

	mgr.AddFlowRate(1.1)
	mgr.AddFlowRate(1.8)
	mgr.AddFlowRate(2.2)
	if got := len(mgr.FlowRates()); got != 3 {
		t.Errorf("expected 3 flow samples, got %d", got)
	}

	// Paddle up: the watchdog must end the shot on its own.
	paddle.Set(false)
	waitFor(t, "watchdog to drop the relay", func() bool { return !mgr.RelayOn() })

	cs := mgr.Status()
	if cs.Counters.WatchdogTrips != 1 {
		t.Errorf("expected 1 watchdog trip, got %d", cs.Counters.WatchdogTrips)
	}
	if cs.Counters.ShotsStarted != 1 {
		t.Errorf("expected 1 shot started, got %d", cs.Counters.ShotsStarted)
	}

	mgr.Stop()
	if got := st.SaveCount(); got != 1 {
		t.Errorf("expected the shot-end save flushed, got %d", got)
	}

	payloads := pub.Events()
	if len(payloads) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(payloads))
	}
	var parsed struct {
		Espresso struct {
			TS     string `json:"ts"`
			Event  string `json:"event"`
			ShotID string `json:"shot_id"`
			Memory string `json:"memory"`
		} `json:"espresso"`
	}
	if err := json.Unmarshal(payloads[0], &parsed); err != nil {
		t.Fatalf("payload 0: invalid JSON: %v", err)
	}
	if parsed.Espresso.Event != "SHOT_STARTED" {
		t.Errorf("expected SHOT_STARTED first, got %s", parsed.Espresso.Event)
	}
	if parsed.Espresso.TS == "" || parsed.Espresso.ShotID == "" || parsed.Espresso.Memory != "A" {
		t.Errorf("incomplete start payload: %s", payloads[0])
	}
	startID := parsed.Espresso.ShotID
	if err := json.Unmarshal(payloads[1], &parsed); err != nil {
		t.Fatalf("payload 1: invalid JSON: %v", err)
	}
	if parsed.Espresso.Event != "SHOT_ENDED" {
		t.Errorf("expected SHOT_ENDED second, got %s", parsed.Espresso.Event)
	}
	if parsed.Espresso.ShotID != startID {
		t.Errorf("end shot id %q does not match start %q", parsed.Espresso.ShotID, startID)
	}
}

// TestIntegrationScaleLifecycle runs real discovery against a scripted
// scanner: the worker finds the scale once the switch turns on, the
// arbiter claims the address and connects, and the switch going off tears
// the link down.
func TestIntegrationScaleLifecycle(t *testing.T) {
	relay := gpio.NewFakeOutput()
	paddle := gpio.NewFakeInput(false)
	st := &store.FakeStore{}
	sc := &scale.FakeScanner{Results: [][]string{
		nil, // first scan misses
		{"aa:bb:cc:dd:ee:01"},
	}}

	cfg := control.Config{
		ScanTimeout:    time.Millisecond,
		ScanFoundDelay: time.Millisecond,
		ScanRetryDelay: time.Millisecond,
		ScanIdleDelay:  time.Millisecond,
	}
	mgr := control.New(cfg, relay, paddle, sc, st, nil)
	dev := &scale.FakeDevice{}

	mgr.Start()
	defer mgr.Stop()

	// Switch off: the worker never scans.
	time.Sleep(20 * time.Millisecond)
	if got := sc.Calls(); got != 0 {
		t.Fatalf("expected no scans with switch off, got %d", got)
	}

	mgr.SetScaleSwitch(true)
	waitFor(t, "discovery to find the scale", func() bool {
		return mgr.Status().PendingAddr != ""
	})
	if got := mgr.Status().Counters.Scans; got < 2 {
		t.Errorf("expected at least 2 scans (miss then hit), got %d", got)
	}

	if !mgr.ReconcileScaleConnection(dev) {
		t.Fatal("expected reconcile to start the connection")
	}
	if got := dev.Address(); got != "aa:bb:cc:dd:ee:01" {
		t.Errorf("expected discovered address handed over, got %q", got)
	}
	if dev.Connects() != 1 {
		t.Errorf("expected 1 connect, got %d", dev.Connects())
	}
	if !mgr.Status().ScaleConnected {
		t.Error("expected status connected")
	}

	// Switch off: the next cycle must drop the link.
	mgr.SetScaleSwitch(false)
	if mgr.ReconcileScaleConnection(dev) {
		t.Fatal("expected reconcile false with switch off")
	}
	if dev.Disconnects() != 1 {
		t.Errorf("expected 1 disconnect, got %d", dev.Disconnects())
	}
	if dev.Connected() {
		t.Error("expected device disconnected")
	}
}

// TestIntegrationMemoryPersistence checks that a learned overshoot and a
// rotation both reach the store in the rotated order.
func TestIntegrationMemoryPersistence(t *testing.T) {
	relay := gpio.NewFakeOutput()
	paddle := gpio.NewFakeInput(false)
	st := &store.FakeStore{}

	mgr := control.New(control.Config{}, relay, paddle, nil, st, nil)
	mgr.Start()

	if err := mgr.LearnOvershoot(37.5); err != nil {
		t.Fatalf("learn overshoot: %v", err)
	}
	mgr.RotateMemory()
	mgr.Stop()

	last := st.LastSave()
	if len(last) != 3 {
		t.Fatalf("expected 3 memories saved, got %d", len(last))
	}
	if last[0].Name != "B" || last[1].Name != "C" || last[2].Name != "A" {
		t.Errorf("expected rotated order B,C,A, got %s,%s,%s", last[0].Name, last[1].Name, last[2].Name)
	}
	if last[2].Overshoot != 2.5 {
		t.Errorf("expected learned overshoot 2.5 persisted, got %g", last[2].Overshoot)
	}

	// A restart from that save resumes on the rotated memory.
	mgr2 := control.New(control.Config{}, gpio.NewFakeOutput(), gpio.NewFakeInput(false), nil,
		&store.FakeStore{LoadMemories: last}, nil)
	if got := mgr2.CurrentMemory().Name; got != "B" {
		t.Errorf("expected restart to resume on memory B, got %s", got)
	}
}

// TestIntegrationLifecycleTelemetry renders STARTUP with an embedded
// status document and a bare SHUTDOWN, the way the daemon publishes them.
func TestIntegrationLifecycleTelemetry(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pub := &mqtt.FakePublisher{}

	mgr := control.New(control.Config{}, gpio.NewFakeOutput(), gpio.NewFakeInput(false), nil,
		&store.FakeStore{}, nil)
	tracker := status.NewTracker(startTime, "tcp://192.168.1.200:1883", "memory.save")
	tracker.Update(mgr.Status())

	doc, err := status.FormatJSON(tracker.Snapshot(), startTime)
	if err != nil {
		t.Fatalf("format status: %v", err)
	}
	payload, err := mqtt.FormatSystemEvent(mqtt.SystemStartup, startTime, doc)
	if err != nil {
		t.Fatalf("format startup: %v", err)
	}
	if err := pub.PublishSystem(payload); err != nil {
		t.Fatalf("publish startup: %v", err)
	}

	var parsed struct {
		System struct {
			TS     string `json:"ts"`
			Event  string `json:"event"`
			Status struct {
				RelayOn  bool `json:"relay_on"`
				Memories []struct {
					Name string `json:"name"`
				} `json:"memories"`
				Broker string `json:"broker"`
			} `json:"status"`
		} `json:"system"`
	}
	if err := json.Unmarshal(pub.Systems()[0], &parsed); err != nil {
		t.Fatalf("invalid startup JSON: %v", err)
	}
	if parsed.System.TS != "2026-01-01T12:00:00Z" {
		t.Errorf("ts: got %q, want 2026-01-01T12:00:00Z", parsed.System.TS)
	}
	if parsed.System.Event != "STARTUP" {
		t.Errorf("event: got %q, want STARTUP", parsed.System.Event)
	}
	if parsed.System.Status.RelayOn {
		t.Error("expected relay off in the startup snapshot")
	}
	if len(parsed.System.Status.Memories) != 3 {
		t.Errorf("expected 3 memories in status, got %d", len(parsed.System.Status.Memories))
	}
	if parsed.System.Status.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("broker: got %q", parsed.System.Status.Broker)
	}

	shutdownTime := startTime.Add(time.Hour)
	payload, err = mqtt.FormatSystemEvent(mqtt.SystemShutdown, shutdownTime, nil)
	if err != nil {
		t.Fatalf("format shutdown: %v", err)
	}
	pub.PublishSystem(payload)

	expected := `{"system":{"ts":"2026-01-01T13:00:00Z","event":"SHUTDOWN"}}`
	if got := string(pub.Systems()[1]); got != expected {
		t.Errorf("unexpected shutdown payload:\ngot:  %s\nwant: %s", got, expected)
	}
}
