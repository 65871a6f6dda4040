package gpio

import "sync"

// FakeInput is a test double whose asserted level tests flip at will. It is
// safe for concurrent use so tests can change the level while a control
// loop reads it.
type FakeInput struct {
	mu       sync.Mutex
	asserted bool

	// ReadErr, if set, is returned by Read.
	ReadErr error

	// Closed tracks whether Close was called.
	Closed bool

	reads int
}

// NewFakeInput creates a FakeInput at the given level.
func NewFakeInput(asserted bool) *FakeInput {
	return &FakeInput{asserted: asserted}
}

// Read returns the current level.
func (f *FakeInput) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.ReadErr != nil {
		return false, f.ReadErr
	}
	return f.asserted, nil
}

// Set changes the level seen by subsequent reads.
func (f *FakeInput) Set(asserted bool) {
	f.mu.Lock()
	f.asserted = asserted
	f.mu.Unlock()
}

// Reads returns how many times Read was called.
func (f *FakeInput) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Close marks the input as closed.
func (f *FakeInput) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeOutput records every commanded level for test assertions.
type FakeOutput struct {
	mu sync.Mutex
	on bool

	// SetErr, if set, is returned by Set and the remembered level is left
	// unchanged, matching the real implementation.
	SetErr error

	// Closed tracks whether Close was called.
	Closed bool

	history []bool
}

// NewFakeOutput creates a FakeOutput that is initially off.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records and applies the commanded level.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetErr != nil {
		return f.SetErr
	}
	f.on = on
	f.history = append(f.history, on)
	return nil
}

// Get returns the last commanded level.
func (f *FakeOutput) Get() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

// History returns every level commanded so far.
func (f *FakeOutput) History() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.history))
	copy(out, f.history)
	return out
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
