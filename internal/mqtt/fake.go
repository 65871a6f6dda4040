package mqtt

import "sync"

// FakePublisher records payloads in memory.
type FakePublisher struct {
	mu sync.Mutex

	// EventErr / SystemErr, when set, are returned by the corresponding
	// publish; the payload is not recorded.
	EventErr  error
	SystemErr error

	// ConnectedState is what Connected reports.
	ConnectedState bool

	events  [][]byte
	systems [][]byte
	closed  bool
}

// PublishEvent records a brew event payload.
func (f *FakePublisher) PublishEvent(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EventErr != nil {
		return f.EventErr
	}
	f.events = append(f.events, append([]byte(nil), payload...))
	return nil
}

// PublishSystem records a lifecycle payload.
func (f *FakePublisher) PublishSystem(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SystemErr != nil {
		return f.SystemErr
	}
	f.systems = append(f.systems, append([]byte(nil), payload...))
	return nil
}

// Connected reports the configured link state.
func (f *FakePublisher) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ConnectedState
}

// Close marks the publisher closed.
func (f *FakePublisher) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// Events returns the recorded brew payloads, oldest first.
func (f *FakePublisher) Events() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.events))
	for i, e := range f.events {
		out[i] = append([]byte(nil), e...)
	}
	return out
}

// Systems returns the recorded lifecycle payloads, oldest first.
func (f *FakePublisher) Systems() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.systems))
	for i, s := range f.systems {
		out[i] = append([]byte(nil), s...)
	}
	return out
}

// Closed reports whether Close ran.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
