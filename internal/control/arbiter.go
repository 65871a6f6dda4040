package control

import (
	"log"

	"github.com/george-ags/lm-micra/internal/scale"
)

// ReconcileScaleConnection drives the scale link toward the switch
// position and reports whether a connection is believed up. It never
// blocks: Connect only starts an attempt. Meant to be called from the
// control cycle.
//
// The true returned right after a fresh Connect is optimistic; if the
// dial fails, the next cycle observes Connected() false and discovery
// resumes. The cost is a brief false positive, never a stuck state.
func (m *Manager) ReconcileScaleConnection(dev scale.Device) bool {
	connected := dev.Connected()

	m.mu.Lock()
	m.scaleConnected = connected
	switchOn := m.scaleSwitch
	m.mu.Unlock()

	if !switchOn {
		if connected {
			if err := dev.Disconnect(); err != nil {
				log.Printf("control: scale disconnect: %v", err)
			}
			m.mu.Lock()
			m.scaleConnected = false
			m.mu.Unlock()
		}
		return false
	}

	if connected {
		return true
	}

	// Claim the discovered address before dialling so a failed attempt
	// leaves the slot empty and discovery starts over with a fresh scan.
	m.mu.Lock()
	addr := m.discoveredAddr
	m.discoveredAddr = ""
	m.mu.Unlock()

	if addr == "" {
		return false
	}

	dev.SetAddress(addr)
	if err := dev.Connect(); err != nil {
		log.Printf("control: scale connect %s: %v", addr, err)
		return false
	}

	m.mu.Lock()
	m.scaleConnected = true
	m.mu.Unlock()
	log.Printf("control: scale connecting to %s", addr)
	return true
}
