//go:build !linux

package scale

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("bluetooth scales are only supported on linux")

// BLEScanner is unavailable on this platform.
type BLEScanner struct{}

// NewBLEScanner always fails on this platform.
func NewBLEScanner() (*BLEScanner, error) { return nil, errUnsupported }

// Scan always fails on this platform.
func (s *BLEScanner) Scan(timeout time.Duration) ([]string, error) { return nil, errUnsupported }

// BLEDevice is unavailable on this platform.
type BLEDevice struct{}

// NewBLEDevice always fails on this platform.
func NewBLEDevice() (*BLEDevice, error) { return nil, errUnsupported }

// Connected always reports false on this platform.
func (d *BLEDevice) Connected() bool { return false }

// SetAddress does nothing on this platform.
func (d *BLEDevice) SetAddress(addr string) {}

// Address always returns "" on this platform.
func (d *BLEDevice) Address() string { return "" }

// Connect always fails on this platform.
func (d *BLEDevice) Connect() error { return errUnsupported }

// Disconnect always fails on this platform.
func (d *BLEDevice) Disconnect() error { return errUnsupported }
