// Package gpio provides digital pin access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

// Input reads the logical state of a digital input pin.
type Input interface {
	// Read returns true while the pin is asserted. Buttons and the brew
	// paddle are wired active-low with pull-ups, so the real
	// implementation inverts the raw level: raw low = asserted.
	Read() (bool, error)

	// Close releases the line.
	Close() error
}

// Output drives a digital output pin and remembers the commanded level.
type Output interface {
	// Set drives the pin high (true) or low (false).
	Set(on bool) error

	// Get returns the last commanded level. This is the authoritative
	// relay state for the control loops.
	Get() bool

	// Close releases the line, driving it low first.
	Close() error
}

// Default pin assignments (BCM numbering).
const (
	DefaultPinTare        = 4
	DefaultPinScaleSwitch = 5
	DefaultPinTargetInc   = 12
	DefaultPinTargetDec   = 16
	DefaultPinPaddle      = 20
	DefaultPinMemory      = 21
	DefaultPinRelay       = 26
)
