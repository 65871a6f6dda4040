//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// Chip opens the Linux GPIO character device and hands out lines.
type Chip struct {
	chip *gpiocdev.Chip
}

// OpenChip opens the named GPIO chip ("gpiochip0" on a Raspberry Pi).
func OpenChip(name string) (*Chip, error) {
	c, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &Chip{chip: c}, nil
}

// Input requests pin as an input with pull-up bias. Buttons and the paddle
// switch close to ground, so asserted means raw low.
func (c *Chip) Input(pin int) (*RealInput, error) {
	line, err := c.chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", pin, err)
	}
	return &RealInput{line: line, pin: pin}, nil
}

// Output requests pin as an output, initially low.
func (c *Chip) Output(pin int) (*RealOutput, error) {
	line, err := c.chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &RealOutput{line: line, pin: pin}, nil
}

// Close releases the chip. Lines requested from it should be closed first.
func (c *Chip) Close() error {
	return c.chip.Close()
}

// RealInput is an active-low input line.
type RealInput struct {
	line *gpiocdev.Line
	pin  int
}

// Read returns true while the line is pulled low.
func (in *RealInput) Read() (bool, error) {
	v, err := in.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", in.pin, err)
	}
	// Pull-up wiring: raw low (0) = asserted.
	return v == 0, nil
}

// Close releases the line.
func (in *RealInput) Close() error {
	return in.line.Close()
}

// RealOutput drives a line and tracks the commanded level.
type RealOutput struct {
	line *gpiocdev.Line
	pin  int

	mu sync.Mutex
	on bool
}

// Set drives the line high or low. On error the remembered level is left
// unchanged so callers retry on their next cycle.
func (o *RealOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", o.pin, err)
	}
	o.mu.Lock()
	o.on = on
	o.mu.Unlock()
	return nil
}

// Get returns the last commanded level.
func (o *RealOutput) Get() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.on
}

// Close drives the line low before releasing it so the relay cannot stay
// energized across a restart.
func (o *RealOutput) Close() error {
	if err := o.Set(false); err != nil {
		o.line.Close()
		return err
	}
	return o.line.Close()
}
