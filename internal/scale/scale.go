// Package scale defines the weighing-scale capabilities consumed by the
// control core: discovery of candidate devices, a connectable device
// handle, and an optional tare command. The real implementation speaks BLE;
// the weighing protocol itself lives outside this module — the controller
// only needs addresses and a connected flag.
package scale

import (
	"strings"
	"time"
)

// Device is a handle to one scale.
type Device interface {
	// Connected reports the live link state.
	Connected() bool

	// SetAddress selects the peer for the next Connect.
	SetAddress(addr string)

	// Address returns the selected peer address ("" if none).
	Address() string

	// Connect issues a connection attempt toward the selected address.
	// Implementations must not block on the radio; a synchronous error
	// means the attempt could not even start.
	Connect() error

	// Disconnect tears down the link if one exists.
	Disconnect() error
}

// Scanner discovers nearby scales.
type Scanner interface {
	// Scan searches for up to timeout and returns the addresses found,
	// possibly none. Blocking for the full timeout is acceptable: the
	// discovery worker isolates this call in its own goroutine.
	Scan(timeout time.Duration) ([]string, error)
}

// Tarer zeroes the scale at shot start. Registration is optional;
// NoopTarer stands in when no weighing protocol is wired.
type Tarer interface {
	Tare() error
}

// NoopTarer ignores tare requests.
type NoopTarer struct{}

// Tare does nothing.
func (NoopTarer) Tare() error { return nil }

// namePrefixes lists the advertised-name prefixes of supported scales
// (Acaia family).
var namePrefixes = []string{"ACAIA", "LUNAR", "PEARL", "PROCH", "PYXIS", "CINCO"}

// IsScaleName reports whether a BLE advertisement name looks like a
// supported scale.
func IsScaleName(name string) bool {
	if name == "" {
		return false
	}
	upper := strings.ToUpper(name)
	for _, p := range namePrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}
