package control

import "log"

// watchdogLoop enforces paddle-release shutoff. It is the sole authority
// for de-energising the relay during a shot; release edges elsewhere are
// never wired to the relay.
func (m *Manager) watchdogLoop() {
	defer m.wg.Done()
	log.Printf("control: paddle watchdog started (poll %v, confirm %v)",
		m.cfg.WatchdogPoll, m.cfg.WatchdogConfirm)
	for m.running() {
		m.watchdogCheck()
		m.idle(m.cfg.WatchdogPoll)
	}
}

// watchdogCheck runs one poll cycle. With the relay energised and the
// paddle reading released, it waits WatchdogConfirm and reads again; only
// a second released reading trips the relay. The re-read rejects contact
// noise while keeping shutoff within one poll plus one confirm of a true
// release.
func (m *Manager) watchdogCheck() {
	if !m.relay.Get() {
		return
	}
	if m.paddleAsserted() {
		return
	}
	m.sleep(m.cfg.WatchdogConfirm)
	if m.paddleAsserted() {
		return
	}

	m.mu.Lock()
	m.counters.WatchdogTrips++
	m.mu.Unlock()
	log.Printf("control: paddle released, relay off")
	m.DisableRelay()
}

// paddleAsserted reads the paddle. A read error counts as released, so a
// broken paddle line fails toward shutoff.
func (m *Manager) paddleAsserted() bool {
	v, err := m.paddle.Read()
	if err != nil {
		log.Printf("control: paddle read: %v", err)
		return false
	}
	return v
}
