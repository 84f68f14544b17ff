package logger

// RingBuffer is a fixed-capacity circular buffer of log lines.
type RingBuffer struct {
	lines     []string
	head      int // next write position
	size      int
	totalSeen int // lines added since the last ResetSeen
}

// NewRingBuffer creates a new ring buffer with the specified capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{lines: make([]string, capacity)}
}

// Capacity returns the maximum number of lines held.
func (rb *RingBuffer) Capacity() int {
	return len(rb.lines)
}

// TotalSeen returns the number of lines added since the last reset.
func (rb *RingBuffer) TotalSeen() int {
	return rb.totalSeen
}

// ResetSeen sets the seen counter back to the number of buffered lines.
func (rb *RingBuffer) ResetSeen() {
	rb.totalSeen = rb.size
}

// Add appends a line, overwriting the oldest when full.
func (rb *RingBuffer) Add(line string) {
	rb.lines[rb.head] = line
	rb.head = (rb.head + 1) % len(rb.lines)

	if rb.size < len(rb.lines) {
		rb.size++
	}
	rb.totalSeen++
}

// Lines returns all buffered lines in chronological order.
func (rb *RingBuffer) Lines() []string {
	if rb.size == 0 {
		return nil
	}

	capacity := len(rb.lines)
	start := (rb.head - rb.size + capacity) % capacity

	result := make([]string, rb.size)
	for i := range rb.size {
		result[i] = rb.lines[(start+i)%capacity]
	}

	return result
}
