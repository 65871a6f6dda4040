package control

import (
	"log"
	"time"
)

// discoveryLoop hunts for a scale address in the background. Scans run
// only while one is wanted: switch on, no live connection, no address
// already waiting to be claimed. The radio work stays in this goroutine
// so a slow scan cannot stall the control cycle or the watchdog.
func (m *Manager) discoveryLoop() {
	defer m.wg.Done()
	log.Printf("control: scale discovery started (scan timeout %v)", m.cfg.ScanTimeout)
	for m.running() {
		m.idle(m.discoveryCycle())
	}
}

// discoveryCycle runs at most one scan and returns the wait before the
// next cycle: ScanIdleDelay when no scan is wanted, ScanFoundDelay after
// a hit, ScanRetryDelay after a miss or error. Errors never end the
// loop.
func (m *Manager) discoveryCycle() time.Duration {
	m.mu.Lock()
	wanted := m.scaleSwitch && !m.scaleConnected && m.discoveredAddr == ""
	if wanted {
		m.counters.Scans++
	}
	m.mu.Unlock()
	if !wanted {
		return m.cfg.ScanIdleDelay
	}

	addrs, err := m.scanner.Scan(m.cfg.ScanTimeout)
	if err != nil {
		log.Printf("control: scale scan: %v", err)
		return m.cfg.ScanRetryDelay
	}
	if len(addrs) == 0 {
		return m.cfg.ScanRetryDelay
	}

	m.mu.Lock()
	m.discoveredAddr = addrs[0]
	m.mu.Unlock()
	log.Printf("control: scale found at %s", addrs[0])
	return m.cfg.ScanFoundDelay
}
