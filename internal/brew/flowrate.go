package brew

// DefaultFlowCapacity bounds the flow-rate history kept for the UI graph.
const DefaultFlowCapacity = 500

// FlowBuffer is a fixed-capacity FIFO of flow-rate samples. When full, the
// oldest sample is dropped. The relay/trailing-drip acceptance gate lives in
// the control manager, not here. Not safe for concurrent use — the control
// manager holds its lock around every call.
type FlowBuffer struct {
	buf      []float64
	capacity int
	head     int // next write position
	count    int
}

// NewFlowBuffer creates a buffer holding at most capacity samples. A
// non-positive capacity falls back to DefaultFlowCapacity.
func NewFlowBuffer(capacity int) *FlowBuffer {
	if capacity <= 0 {
		capacity = DefaultFlowCapacity
	}
	return &FlowBuffer{buf: make([]float64, capacity), capacity: capacity}
}

// Append records a sample, evicting the oldest when the buffer is full.
func (b *FlowBuffer) Append(sample float64) {
	b.buf[b.head] = sample
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// Samples returns the buffered samples oldest first.
func (b *FlowBuffer) Samples() []float64 {
	if b.count == 0 {
		return nil
	}
	out := make([]float64, b.count)
	start := (b.head - b.count + b.capacity) % b.capacity
	for i := 0; i < b.count; i++ {
		out[i] = b.buf[(start+i)%b.capacity]
	}
	return out
}

// Reset drops all samples. Called at shot start.
func (b *FlowBuffer) Reset() {
	b.head = 0
	b.count = 0
}

// Len returns the number of buffered samples.
func (b *FlowBuffer) Len() int {
	return b.count
}

// Cap returns the configured capacity.
func (b *FlowBuffer) Cap() int {
	return b.capacity
}
