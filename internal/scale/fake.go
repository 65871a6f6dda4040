package scale

import (
	"sync"
	"time"
)

// FakeScanner returns scripted scan results. Configure Results and Err
// before handing it to the discovery worker.
type FakeScanner struct {
	mu sync.Mutex

	// Results are returned one slice per call; once exhausted, Scan keeps
	// returning the last entry. Leave nil for an always-empty scan.
	Results [][]string

	// Err, when set, is returned by every Scan call.
	Err error

	calls    int
	timeouts []time.Duration
}

// Scan returns the next scripted result.
func (f *FakeScanner) Scan(timeout time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.timeouts = append(f.timeouts, timeout)
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Results) == 0 {
		return nil, nil
	}
	idx := f.calls - 1
	if idx >= len(f.Results) {
		idx = len(f.Results) - 1
	}
	res := make([]string, len(f.Results[idx]))
	copy(res, f.Results[idx])
	return res, nil
}

// Calls returns how many times Scan ran.
func (f *FakeScanner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Timeouts returns the timeout passed to each Scan call.
func (f *FakeScanner) Timeouts() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.timeouts))
	copy(out, f.timeouts)
	return out
}

// FakeDevice is an in-memory scale handle. Connect succeeds instantly
// unless ConnectErr is set.
type FakeDevice struct {
	mu sync.Mutex

	// ConnectErr, when set, is returned by Connect and leaves the device
	// disconnected.
	ConnectErr error

	// DisconnectErr, when set, is returned by Disconnect. The link is
	// still marked down.
	DisconnectErr error

	// TareErr, when set, is returned by Tare.
	TareErr error

	addr        string
	connected   bool
	connects    int
	disconnects int
	tares       int
}

// Connected reports the fake link state.
func (f *FakeDevice) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// SetConnected forces the link state, standing in for a remote peer
// coming or going.
func (f *FakeDevice) SetConnected(c bool) {
	f.mu.Lock()
	f.connected = c
	f.mu.Unlock()
}

// SetAddress selects the peer for the next Connect.
func (f *FakeDevice) SetAddress(addr string) {
	f.mu.Lock()
	f.addr = addr
	f.mu.Unlock()
}

// Address returns the selected peer address.
func (f *FakeDevice) Address() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addr
}

// Connect marks the device connected, or fails with ConnectErr.
func (f *FakeDevice) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	return nil
}

// Disconnect marks the device disconnected.
func (f *FakeDevice) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return f.DisconnectErr
}

// Tare records the call, so tests can assert the shot sequence reached
// the scale.
func (f *FakeDevice) Tare() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tares++
	return f.TareErr
}

// Connects returns how many Connect calls were made.
func (f *FakeDevice) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Disconnects returns how many Disconnect calls were made.
func (f *FakeDevice) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// Tares returns how many Tare calls were made.
func (f *FakeDevice) Tares() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tares
}
