//go:build linux

package scale

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// adapterOnce guards bluetooth adapter initialisation. Enable must run
// exactly once per process even when both a scanner and a device are built.
var adapterOnce struct {
	sync.Once
	err error
}

func enableAdapter() (*bluetooth.Adapter, error) {
	a := bluetooth.DefaultAdapter
	adapterOnce.Do(func() {
		adapterOnce.err = a.Enable()
	})
	if adapterOnce.err != nil {
		return nil, fmt.Errorf("enable bluetooth adapter: %w", adapterOnce.err)
	}
	return a, nil
}

// BLEScanner discovers scales by advertisement name.
type BLEScanner struct {
	adapter *bluetooth.Adapter
}

// NewBLEScanner enables the default bluetooth adapter and returns a
// scanner on it.
func NewBLEScanner() (*BLEScanner, error) {
	adapter, err := enableAdapter()
	if err != nil {
		return nil, err
	}
	return &BLEScanner{adapter: adapter}, nil
}

// Scan watches advertisements for up to timeout and returns the addresses
// of scales seen. The scan stops early on the first match: the discovery
// worker only ever takes one address per cycle.
func (s *BLEScanner) Scan(timeout time.Duration) ([]string, error) {
	var (
		mu    sync.Mutex
		found []string
		seen  = make(map[string]bool)
	)

	timer := time.AfterFunc(timeout, func() {
		s.adapter.StopScan()
	})
	defer timer.Stop()

	err := s.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !IsScaleName(result.LocalName()) {
			return
		}
		addr := result.Address.String()

		mu.Lock()
		fresh := !seen[addr]
		if fresh {
			seen[addr] = true
			found = append(found, addr)
		}
		mu.Unlock()

		if fresh {
			adapter.StopScan()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ble scan: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return found, nil
}

// BLEDevice is a scale handle over the default bluetooth adapter.
//
// Connect never blocks on the radio: the dial runs on its own goroutine
// and the connected flag is updated when it settles, so callers polling
// Connected see the attempt land (or not) on a later cycle. The adapter's
// connect handler mirrors remote disconnects back into the flag.
type BLEDevice struct {
	adapter *bluetooth.Adapter

	mu        sync.Mutex
	addr      string
	connected bool
	dialing   bool
	dev       bluetooth.Device
	hasDev    bool
}

// NewBLEDevice enables the default bluetooth adapter and returns an
// unconnected device handle.
func NewBLEDevice() (*BLEDevice, error) {
	adapter, err := enableAdapter()
	if err != nil {
		return nil, err
	}
	d := &BLEDevice{adapter: adapter}
	adapter.SetConnectHandler(func(dev bluetooth.Device, connected bool) {
		d.mu.Lock()
		if d.hasDev && dev.Address == d.dev.Address {
			d.connected = connected
			if !connected {
				d.hasDev = false
			}
		}
		d.mu.Unlock()
	})
	return d, nil
}

// Connected reports the live link state.
func (d *BLEDevice) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// SetAddress selects the peer for the next Connect.
func (d *BLEDevice) SetAddress(addr string) {
	d.mu.Lock()
	d.addr = addr
	d.mu.Unlock()
}

// Address returns the selected peer address.
func (d *BLEDevice) Address() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Connect starts a dial toward the selected address. Only address
// validation is synchronous; the radio work happens on a goroutine.
// At most one dial is in flight at a time.
func (d *BLEDevice) Connect() error {
	d.mu.Lock()
	if d.connected || d.dialing {
		d.mu.Unlock()
		return nil
	}
	addr := d.addr
	d.mu.Unlock()

	if addr == "" {
		return errors.New("connect scale: no address set")
	}
	mac, err := bluetooth.ParseMAC(addr)
	if err != nil {
		return fmt.Errorf("connect scale: address %q: %w", addr, err)
	}

	d.mu.Lock()
	if d.connected || d.dialing {
		d.mu.Unlock()
		return nil
	}
	d.dialing = true
	d.mu.Unlock()

	go d.dial(bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}})
	return nil
}

func (d *BLEDevice) dial(addr bluetooth.Address) {
	dev, err := d.adapter.Connect(addr, bluetooth.ConnectionParams{})

	d.mu.Lock()
	d.dialing = false
	if err == nil {
		d.dev = dev
		d.hasDev = true
		d.connected = true
	}
	d.mu.Unlock()

	if err != nil {
		log.Printf("scale: connect %s: %v", addr.String(), err)
	}
}

// Disconnect tears down the link if one exists.
func (d *BLEDevice) Disconnect() error {
	d.mu.Lock()
	dev, had := d.dev, d.hasDev
	d.hasDev = false
	d.connected = false
	d.mu.Unlock()

	if !had {
		return nil
	}
	if err := dev.Disconnect(); err != nil {
		return fmt.Errorf("disconnect scale: %w", err)
	}
	return nil
}
