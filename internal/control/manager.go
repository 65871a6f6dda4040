// Package control owns the brewing state machine: the relay watchdog that
// enforces paddle-release shutoff, the background scale discovery worker,
// the scale connection arbiter, the brew-weight memory ring with its
// persistence queue, and the flow-rate history. All shared state sits
// behind one Manager mutex; scale and disk I/O never happen while it is
// held.
package control

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/george-ags/lm-micra/internal/brew"
	"github.com/george-ags/lm-micra/internal/gpio"
	"github.com/george-ags/lm-micra/internal/scale"
	"github.com/george-ags/lm-micra/internal/store"
)

// Default timings, matched to the machine's mechanics.
const (
	DefaultWatchdogPoll    = 50 * time.Millisecond
	DefaultWatchdogConfirm = 10 * time.Millisecond
	DefaultScanTimeout     = time.Second
	DefaultScanFoundDelay  = time.Second
	DefaultScanRetryDelay  = 5 * time.Second
	DefaultScanIdleDelay   = time.Second
	DefaultFlowTailWindow  = 3 * time.Second
	DefaultSaveQueueDepth  = 4
)

// Config carries the manager's tunables. Zero values select the defaults.
type Config struct {
	// FlowCapacity bounds the flow-rate history.
	FlowCapacity int

	// WatchdogPoll is the paddle poll period; WatchdogConfirm is the
	// second-read delay applied when the paddle first reads released.
	WatchdogPoll    time.Duration
	WatchdogConfirm time.Duration

	// ScanTimeout bounds one BLE scan. ScanFoundDelay, ScanRetryDelay and
	// ScanIdleDelay are the waits after a hit, a miss or error, and a
	// cycle where no scan was wanted.
	ScanTimeout    time.Duration
	ScanFoundDelay time.Duration
	ScanRetryDelay time.Duration
	ScanIdleDelay  time.Duration

	// FlowTailWindow is how long after relay-off flow samples still land,
	// catching the drip-out after the pump stops.
	FlowTailWindow time.Duration

	// SaveQueueDepth bounds pending persistence snapshots.
	SaveQueueDepth int
}

func (c Config) withDefaults() Config {
	if c.FlowCapacity <= 0 {
		c.FlowCapacity = brew.DefaultFlowCapacity
	}
	if c.WatchdogPoll <= 0 {
		c.WatchdogPoll = DefaultWatchdogPoll
	}
	if c.WatchdogConfirm <= 0 {
		c.WatchdogConfirm = DefaultWatchdogConfirm
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = DefaultScanTimeout
	}
	if c.ScanFoundDelay <= 0 {
		c.ScanFoundDelay = DefaultScanFoundDelay
	}
	if c.ScanRetryDelay <= 0 {
		c.ScanRetryDelay = DefaultScanRetryDelay
	}
	if c.ScanIdleDelay <= 0 {
		c.ScanIdleDelay = DefaultScanIdleDelay
	}
	if c.FlowTailWindow <= 0 {
		c.FlowTailWindow = DefaultFlowTailWindow
	}
	if c.SaveQueueDepth <= 0 {
		c.SaveQueueDepth = DefaultSaveQueueDepth
	}
	return c
}

// Counters are cumulative since construction.
type Counters struct {
	ShotsStarted  int
	WatchdogTrips int
	Scans         int
	Saves         int
	SaveErrors    int
}

// Status is a point-in-time view of the manager for the reporting layers.
type Status struct {
	RelayOn        bool
	ShotID         string
	ShotElapsed    time.Duration
	Current        brew.Memory
	Memories       []brew.Memory
	FlowCount      int
	ScaleSwitch    bool
	ScaleConnected bool
	PendingAddr    string
	Counters       Counters
}

// Manager coordinates the relay, the paddle, the scale and the memory
// ring. Construct with New, then Start. The notify func receives brew
// events and must not block; pass nil to discard them.
type Manager struct {
	cfg     Config
	relay   gpio.Output
	paddle  gpio.Input
	scanner scale.Scanner
	store   store.Store

	now    func() time.Time
	sleep  func(time.Duration)
	notify func(brew.Event)

	mu             sync.Mutex
	memories       *brew.Ring
	flow           *brew.FlowBuffer
	shotID         string
	shotStart      time.Time
	relayOffAt     time.Time
	discoveredAddr string
	scaleSwitch    bool
	scaleConnected bool
	targetHeld     bool
	tarer          scale.Tarer
	counters       Counters

	saves    chan []brew.Memory
	stopc    chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a manager around the given hardware and persistence. The
// memory ring is loaded from st immediately; scanner may be nil to run
// without scale discovery.
func New(cfg Config, relay gpio.Output, paddle gpio.Input, scanner scale.Scanner, st store.Store, notify func(brew.Event)) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:      cfg,
		relay:    relay,
		paddle:   paddle,
		scanner:  scanner,
		store:    st,
		now:      time.Now,
		sleep:    time.Sleep,
		notify:   notify,
		memories: brew.NewRing(st.Load()),
		flow:     brew.NewFlowBuffer(cfg.FlowCapacity),
		saves:    make(chan []brew.Memory, cfg.SaveQueueDepth),
		stopc:    make(chan struct{}),
	}
	// Treat boot as a relay-off instant so the flow gate starts in its
	// trailing window rather than at an arbitrary zero time.
	m.relayOffAt = m.now()
	return m
}

// Start launches the background workers: the relay watchdog, the save
// writer, and (when a scanner is configured) scale discovery.
func (m *Manager) Start() {
	m.wg.Add(2)
	go m.watchdogLoop()
	go m.saverLoop()
	if m.scanner != nil {
		m.wg.Add(1)
		go m.discoveryLoop()
	}
}

// Stop forces the relay off, halts the workers and flushes pending
// saves. Safe to call more than once.
func (m *Manager) Stop() {
	m.DisableRelay()
	m.stopOnce.Do(func() { close(m.stopc) })
	m.wg.Wait()
}

// running reports whether Stop has been requested.
func (m *Manager) running() bool {
	select {
	case <-m.stopc:
		return false
	default:
		return true
	}
}

// idle sleeps for d or until Stop, whichever comes first.
func (m *Manager) idle(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-m.stopc:
	case <-time.After(d):
	}
}

func (m *Manager) emit(ev brew.Event) {
	if m.notify != nil {
		m.notify(ev)
	}
}

// StartShot begins a brew: the flow history is cleared, the scale (when
// registered) is tared, the relay is energised and SHOT_STARTED goes out.
// A shot already in progress makes this a no-op. The tare round-trip runs
// outside the lock so a slow scale cannot stall the watchdog.
func (m *Manager) StartShot() {
	m.mu.Lock()
	if m.relay.Get() {
		m.mu.Unlock()
		return
	}
	m.flow.Reset()
	tarer := m.tarer
	m.mu.Unlock()

	if tarer != nil {
		if err := tarer.Tare(); err != nil {
			log.Printf("control: tare: %v", err)
		}
	}

	m.mu.Lock()
	if m.relay.Get() {
		m.mu.Unlock()
		return
	}
	if err := m.relay.Set(true); err != nil {
		m.mu.Unlock()
		log.Printf("control: relay on: %v", err)
		return
	}
	now := m.now()
	id := xid.New().String()
	m.shotID = id
	m.shotStart = now
	m.counters.ShotsStarted++
	cur := m.memories.Current()
	ev := brew.Event{
		Timestamp: now,
		Type:      brew.EventShotStarted,
		ShotID:    id,
		Memory:    cur.Name,
		Target:    cur.Target,
	}
	m.mu.Unlock()

	m.emit(ev)
}

// DisableRelay turns the brew relay off, stamps the shot end, queues a
// persistence snapshot and emits SHOT_ENDED. Idempotent: with the relay
// already off it does nothing. Every off path funnels here; nothing else
// may de-energise the relay.
func (m *Manager) DisableRelay() {
	m.mu.Lock()
	if !m.relay.Get() {
		m.mu.Unlock()
		return
	}
	if err := m.relay.Set(false); err != nil {
		m.mu.Unlock()
		// The line still remembers on, so the watchdog retries shortly.
		log.Printf("control: relay off: %v", err)
		return
	}
	now := m.now()
	m.relayOffAt = now
	snap := m.memories.Snapshot()
	cur := m.memories.Current()
	ev := brew.Event{
		Timestamp: now,
		Type:      brew.EventShotEnded,
		ShotID:    m.shotID,
		Memory:    cur.Name,
		Target:    cur.Target,
	}
	if !m.shotStart.IsZero() {
		ev.Duration = now.Sub(m.shotStart)
	}
	m.mu.Unlock()

	m.queueSave(snap)
	if ev.ShotID != "" {
		m.emit(ev)
	}
}

// RelayOn reports whether the brew relay is energised.
func (m *Manager) RelayOn() bool { return m.relay.Get() }

func (m *Manager) elapsedLocked() time.Duration {
	if m.shotStart.IsZero() {
		return 0
	}
	if m.relay.Get() {
		return m.now().Sub(m.shotStart)
	}
	if m.relayOffAt.Before(m.shotStart) {
		return 0
	}
	return m.relayOffAt.Sub(m.shotStart)
}

// ShotElapsed returns how long the current shot has run, or the frozen
// duration of the last one once the relay is off. Zero before any shot.
func (m *Manager) ShotElapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedLocked()
}

// AddFlowRate records one flow sample. Samples land only while the relay
// is on or within FlowTailWindow of it switching off.
func (m *Manager) AddFlowRate(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.relay.Get() && !m.now().Before(m.relayOffAt.Add(m.cfg.FlowTailWindow)) {
		return
	}
	m.flow.Append(rate)
}

// FlowRates returns the recorded samples, oldest first.
func (m *Manager) FlowRates() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flow.Samples()
}

// TargetTap nudges the selected memory's target by 0.1 g in dir (+1/-1).
// The tap that ends a hold sequence is swallowed: the hold already moved
// the target.
func (m *Manager) TargetTap(dir int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.targetHeld {
		m.targetHeld = false
		return
	}
	cur := m.memories.Current()
	cur.Target = math.Round((cur.Target+0.1*float64(dir))*10) / 10
}

// TargetHold moves the selected memory's target to the next whole gram
// in dir and marks the sequence so the trailing release tap is ignored.
// Auto-repeat calls keep stepping a gram at a time.
func (m *Manager) TargetHold(dir int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targetHeld = true
	cur := m.memories.Current()
	if dir > 0 {
		cur.Target = math.Floor(cur.Target) + 1
	} else {
		cur.Target = math.Ceil(cur.Target) - 1
	}
}

// RotateMemory advances the ring to the next memory, persists the new
// order and announces the change.
func (m *Manager) RotateMemory() {
	m.mu.Lock()
	m.memories.RotateForward()
	cur := m.memories.Current()
	ev := brew.Event{
		Timestamp: m.now(),
		Type:      brew.EventMemoryRotated,
		Memory:    cur.Name,
		Target:    cur.Target,
	}
	snap := m.memories.Snapshot()
	m.mu.Unlock()

	m.queueSave(snap)
	m.emit(ev)
}

// CurrentMemory returns a copy of the selected memory.
func (m *Manager) CurrentMemory() brew.Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.memories.Current()
}

// Memories returns copies of all memories in rotation order.
func (m *Manager) Memories() []brew.Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memories.Snapshot()
}

// LearnOvershoot folds an observed final weight into the selected
// memory's overshoot. Implausible observations are rejected; the error is
// logged and returned, and the memory keeps its old value.
func (m *Manager) LearnOvershoot(observed float64) error {
	m.mu.Lock()
	err := m.memories.Current().LearnOvershoot(observed)
	m.mu.Unlock()
	if err != nil {
		log.Printf("control: overshoot update rejected: %v", err)
	}
	return err
}

// SetScaleSwitch mirrors the physical scale-connect switch position.
func (m *Manager) SetScaleSwitch(on bool) {
	m.mu.Lock()
	m.scaleSwitch = on
	m.mu.Unlock()
}

// ScaleSwitchOn reports the mirrored switch position.
func (m *Manager) ScaleSwitchOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scaleSwitch
}

// SetTareHandler registers the scale's tare command, invoked at shot
// start. Pass nil to clear.
func (m *Manager) SetTareHandler(t scale.Tarer) {
	m.mu.Lock()
	m.tarer = t
	m.mu.Unlock()
}

// Tare zeroes the scale through the registered handler, if any.
func (m *Manager) Tare() {
	m.mu.Lock()
	tarer := m.tarer
	m.mu.Unlock()
	if tarer == nil {
		return
	}
	if err := tarer.Tare(); err != nil {
		log.Printf("control: tare: %v", err)
	}
}

// SaveMemories queues a persistence snapshot of the ring immediately,
// without waiting for a relay-off.
func (m *Manager) SaveMemories() {
	m.mu.Lock()
	snap := m.memories.Snapshot()
	m.mu.Unlock()
	m.queueSave(snap)
}

// queueSave hands a snapshot to the save writer without blocking. When
// the queue is full the oldest pending snapshot is dropped; only the
// newest state matters on disk.
func (m *Manager) queueSave(snap []brew.Memory) {
	for {
		select {
		case m.saves <- snap:
			return
		default:
		}
		select {
		case <-m.saves:
		default:
		}
	}
}

// saverLoop is the only goroutine that touches the store. On stop it
// drains whatever is still queued before returning.
func (m *Manager) saverLoop() {
	defer m.wg.Done()
	for {
		select {
		case snap := <-m.saves:
			m.writeSave(snap)
		case <-m.stopc:
			for {
				select {
				case snap := <-m.saves:
					m.writeSave(snap)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) writeSave(snap []brew.Memory) {
	err := m.store.Save(snap)
	m.mu.Lock()
	if err != nil {
		m.counters.SaveErrors++
	} else {
		m.counters.Saves++
	}
	m.mu.Unlock()
	if err != nil {
		log.Printf("control: save memories: %v", err)
	}
}

// Status returns a point-in-time view for the reporting layers.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		RelayOn:        m.relay.Get(),
		ShotID:         m.shotID,
		ShotElapsed:    m.elapsedLocked(),
		Current:        *m.memories.Current(),
		Memories:       m.memories.Snapshot(),
		FlowCount:      m.flow.Len(),
		ScaleSwitch:    m.scaleSwitch,
		ScaleConnected: m.scaleConnected,
		PendingAddr:    m.discoveredAddr,
		Counters:       m.counters,
	}
}
