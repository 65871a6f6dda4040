package control

import (
	"errors"
	"testing"

	"github.com/george-ags/lm-micra/internal/scale"
)

func TestReconcileMirrorsLinkState(t *testing.T) {
	tm := newTestManager(Config{})
	dev := &scale.FakeDevice{}
	tm.SetScaleSwitch(true)
	dev.SetConnected(true)

	if !tm.ReconcileScaleConnection(dev) {
		t.Fatal("expected reconcile true for a live link")
	}
	if !tm.Status().ScaleConnected {
		t.Error("expected status to mirror the live link")
	}

	// The peer drops: the next cycle observes it.
	dev.SetConnected(false)
	if tm.ReconcileScaleConnection(dev) {
		t.Fatal("expected reconcile false after the peer dropped")
	}
	if tm.Status().ScaleConnected {
		t.Error("expected status to mirror the dropped link")
	}
}

func TestReconcileDisconnectsWhenSwitchOff(t *testing.T) {
	tm := newTestManager(Config{})
	dev := &scale.FakeDevice{}
	dev.SetConnected(true)

	if tm.ReconcileScaleConnection(dev) {
		t.Fatal("expected reconcile false with switch off")
	}
	if dev.Disconnects() != 1 {
		t.Errorf("expected 1 disconnect, got %d", dev.Disconnects())
	}
	if tm.Status().ScaleConnected {
		t.Error("expected status disconnected")
	}
}

func TestReconcileIdleWhenSwitchOffAndDisconnected(t *testing.T) {
	tm := newTestManager(Config{})
	dev := &scale.FakeDevice{}

	if tm.ReconcileScaleConnection(dev) {
		t.Fatal("expected reconcile false")
	}
	if dev.Disconnects() != 0 || dev.Connects() != 0 {
		t.Errorf("expected no device calls, got %d connects %d disconnects",
			dev.Connects(), dev.Disconnects())
	}
}

func TestReconcileClaimsPendingAddress(t *testing.T) {
	tm := newTestManager(Config{})
	dev := &scale.FakeDevice{}
	tm.SetScaleSwitch(true)
	tm.discoveredAddr = "aa:bb:cc:dd:ee:01"

	if !tm.ReconcileScaleConnection(dev) {
		t.Fatal("expected optimistic true after starting a connect")
	}
	if got := dev.Address(); got != "aa:bb:cc:dd:ee:01" {
		t.Errorf("expected address handed to the device, got %q", got)
	}
	if dev.Connects() != 1 {
		t.Errorf("expected 1 connect, got %d", dev.Connects())
	}

	st := tm.Status()
	if st.PendingAddr != "" {
		t.Errorf("expected claimed address cleared, got %q", st.PendingAddr)
	}
	if !st.ScaleConnected {
		t.Error("expected status connected after claim")
	}
}

// TestReconcileConnectFailureLeavesSlotEmpty: a failed dial must not keep
// the stale address around, so discovery starts over with a fresh scan.
func TestReconcileConnectFailureLeavesSlotEmpty(t *testing.T) {
	tm := newTestManager(Config{})
	dev := &scale.FakeDevice{ConnectErr: errors.New("out of range")}
	tm.SetScaleSwitch(true)
	tm.discoveredAddr = "aa:bb:cc:dd:ee:01"

	if tm.ReconcileScaleConnection(dev) {
		t.Fatal("expected reconcile false after failed connect")
	}
	st := tm.Status()
	if st.PendingAddr != "" {
		t.Errorf("expected failed claim to clear the slot, got %q", st.PendingAddr)
	}
	if st.ScaleConnected {
		t.Error("expected status disconnected after failed connect")
	}
}

func TestReconcileNoPendingAddress(t *testing.T) {
	tm := newTestManager(Config{})
	dev := &scale.FakeDevice{}
	tm.SetScaleSwitch(true)

	if tm.ReconcileScaleConnection(dev) {
		t.Fatal("expected reconcile false with nothing discovered")
	}
	if dev.Connects() != 0 {
		t.Errorf("expected no connect attempts, got %d", dev.Connects())
	}
}
