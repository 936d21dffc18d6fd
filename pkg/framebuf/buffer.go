// ABOUTME: Thread-safe sample FIFO with atomic window drains
// ABOUTME: Optional backlog cap drops the oldest samples and counts them
package framebuf

import "sync"

// compactThreshold is the consumed prefix size at which storage is compacted
const compactThreshold = 1 << 16

// Buffer is a single-producer single-consumer sample queue
type Buffer struct {
	mu         sync.Mutex
	samples    []float32
	head       int // index of the oldest unconsumed sample
	maxSamples int
	dropped    uint64
	pushed     uint64
}

// New creates a buffer. maxSamples <= 0 leaves the backlog unbounded.
func New(maxSamples int) *Buffer {
	if maxSamples < 0 {
		maxSamples = 0
	}
	return &Buffer{
		maxSamples: maxSamples,
	}
}

// Push appends samples to the tail. The slice is copied, so the caller may
// reuse it once Push returns.
func (b *Buffer) Push(samples []float32) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.pushed += uint64(len(samples))

	if b.maxSamples > 0 {
		if len(samples) >= b.maxSamples {
			// The batch alone fills the cap; keep only its newest tail
			b.dropped += uint64(b.lenLocked() + len(samples) - b.maxSamples)
			b.samples = append(b.samples[:0], samples[len(samples)-b.maxSamples:]...)
			b.head = 0
			return
		}
		if over := b.lenLocked() + len(samples) - b.maxSamples; over > 0 {
			b.head += over
			b.dropped += uint64(over)
		}
	}

	b.compactLocked()
	b.samples = append(b.samples, samples...)
}

// Drain removes and returns the oldest n samples when at least n are
// queued. Otherwise it returns false and leaves the buffer untouched.
func (b *Buffer) Drain(n int) ([]float32, bool) {
	if n <= 0 {
		return nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lenLocked() < n {
		return nil, false
	}

	window := make([]float32, n)
	copy(window, b.samples[b.head:b.head+n])
	b.head += n

	if b.head == len(b.samples) {
		b.samples = b.samples[:0]
		b.head = 0
	}

	return window, true
}

// Len returns the number of queued samples
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lenLocked()
}

// Dropped returns how many samples the backlog cap has discarded
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Pushed returns how many samples have been appended in total
func (b *Buffer) Pushed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pushed
}

// MaxSamples returns the backlog cap, 0 when unbounded
func (b *Buffer) MaxSamples() int {
	return b.maxSamples
}

func (b *Buffer) lenLocked() int {
	return len(b.samples) - b.head
}

// compactLocked moves the live samples to the front once the consumed
// prefix grows large, keeping memory proportional to the backlog.
func (b *Buffer) compactLocked() {
	if b.head < compactThreshold || b.head < len(b.samples)/2 {
		return
	}
	n := copy(b.samples, b.samples[b.head:])
	b.samples = b.samples[:n]
	b.head = 0
}
