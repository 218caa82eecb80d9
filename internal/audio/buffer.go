package audio

import (
	"sync"
	"sync/atomic"
)

// Buffer is a thread-safe, append-only store for captured audio samples.
// Samples are only accepted while the buffer is armed.
type Buffer struct {
	samples []float32
	armed   atomic.Bool
	mu      sync.Mutex
}

// NewBuffer creates a new disarmed, empty sample buffer
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Start clears any previous samples and arms the buffer
func (b *Buffer) Start() {
	b.mu.Lock()
	b.samples = nil
	b.mu.Unlock()

	// Arm only after clearing so no frame from the previous session survives
	b.armed.Store(true)
}

// Append adds samples to the buffer if it is armed.
// Returns the number of samples accepted.
func (b *Buffer) Append(samples []float32) int {
	if len(samples) == 0 || !b.armed.Load() {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Re-check under the lock so a concurrent Stop is always observed
	if !b.armed.Load() {
		return 0
	}
	b.samples = append(b.samples, samples...)
	return len(samples)
}

// Stop disarms the buffer and takes ownership of the accumulated samples.
// The buffer is empty afterwards.
func (b *Buffer) Stop() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.armed.Store(false)
	samples := b.samples
	b.samples = nil
	return samples
}

// Armed reports whether the buffer is currently accepting samples
func (b *Buffer) Armed() bool {
	return b.armed.Load()
}

// Len returns the number of samples currently held
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Snapshot returns a copy of the current contents without disturbing accumulation
func (b *Buffer) Snapshot() []float32 {
	return b.SnapshotFrom(0)
}

// SnapshotFrom returns a copy of the samples at index offset and later.
// Returns nil if there is nothing past offset.
func (b *Buffer) SnapshotFrom(offset int) []float32 {
	if offset < 0 {
		offset = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if offset >= len(b.samples) {
		return nil
	}
	out := make([]float32, len(b.samples)-offset)
	copy(out, b.samples[offset:])
	return out
}

// Handle returns a read-only view of the buffer for other goroutines
func (b *Buffer) Handle() Handle {
	return Handle{buf: b}
}

// Handle exposes only the non-destructive reads of a Buffer.
// It is cheap to copy and safe to share.
type Handle struct {
	buf *Buffer
}

// Len returns the number of samples currently captured
func (h Handle) Len() int {
	return h.buf.Len()
}

// Snapshot returns a copy of the current contents
func (h Handle) Snapshot() []float32 {
	return h.buf.Snapshot()
}

// SnapshotFrom returns a copy of the samples at index offset and later
func (h Handle) SnapshotFrom(offset int) []float32 {
	return h.buf.SnapshotFrom(offset)
}

// SampleSource is implemented by anything that can be read incrementally
// while capture continues
type SampleSource interface {
	Len() int
	SnapshotFrom(offset int) []float32
}
