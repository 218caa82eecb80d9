package audio

import (
	"sync"
	"testing"
)

func TestBuffer_AppendWhileDisarmed(t *testing.T) {
	b := NewBuffer()

	if n := b.Append([]float32{0.1, 0.2}); n != 0 {
		t.Errorf("Expected 0 samples accepted while disarmed, got %d", n)
	}
	if b.Len() != 0 {
		t.Errorf("Expected empty buffer, got %d samples", b.Len())
	}
}

func TestBuffer_StartAppendStop(t *testing.T) {
	b := NewBuffer()
	b.Start()

	if !b.Armed() {
		t.Fatal("Expected buffer to be armed after Start")
	}

	b.Append([]float32{0.1, 0.2})
	b.Append([]float32{0.3})

	samples := b.Stop()
	if len(samples) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(samples))
	}
	if samples[2] != 0.3 {
		t.Errorf("Expected last sample 0.3, got %f", samples[2])
	}
	if b.Armed() {
		t.Error("Expected buffer to be disarmed after Stop")
	}
	if b.Len() != 0 {
		t.Errorf("Expected buffer to be empty after Stop, got %d", b.Len())
	}

	// Appends after Stop are dropped
	b.Append([]float32{0.4})
	if b.Len() != 0 {
		t.Errorf("Expected no samples after Stop, got %d", b.Len())
	}
}

func TestBuffer_StartClearsPreviousSession(t *testing.T) {
	b := NewBuffer()

	b.Start()
	b.Append([]float32{1, 1, 1})
	// Session ends without Stop being read, then a new session starts
	b.Start()

	if b.Len() != 0 {
		t.Fatalf("Expected empty buffer after Start, got %d samples", b.Len())
	}

	b.Append([]float32{0.5})
	samples := b.Stop()
	if len(samples) != 1 || samples[0] != 0.5 {
		t.Errorf("Expected only the new session's sample, got %v", samples)
	}
}

func TestBuffer_StartArmsEmptyBuffer(t *testing.T) {
	b := NewBuffer()

	b.Start()
	b.Append([]float32{0.9, 0.9})
	b.Stop()
	b.Append([]float32{0.7}) // between sessions, dropped

	b.Start()
	if !b.Armed() {
		t.Fatal("Expected buffer to be armed after Start")
	}
	if got := b.Snapshot(); len(got) != 0 {
		t.Errorf("Expected armed buffer to start empty, got %v", got)
	}
}

func TestBuffer_SnapshotIsNonDestructive(t *testing.T) {
	b := NewBuffer()
	b.Start()
	b.Append([]float32{0.1, 0.2, 0.3})

	snap := b.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Expected snapshot of 3 samples, got %d", len(snap))
	}

	// Mutating the snapshot must not affect the buffer
	snap[0] = 9
	if b.Snapshot()[0] != 0.1 {
		t.Error("Snapshot shares memory with the buffer")
	}

	b.Append([]float32{0.4})
	if b.Len() != 4 {
		t.Errorf("Expected accumulation to continue after snapshot, got %d", b.Len())
	}
}

func TestBuffer_SnapshotFrom(t *testing.T) {
	b := NewBuffer()
	b.Start()
	b.Append([]float32{0, 1, 2, 3, 4})

	tail := b.SnapshotFrom(3)
	if len(tail) != 2 || tail[0] != 3 || tail[1] != 4 {
		t.Errorf("Expected [3 4], got %v", tail)
	}

	if got := b.SnapshotFrom(5); got != nil {
		t.Errorf("Expected nil at end of buffer, got %v", got)
	}
	if got := b.SnapshotFrom(100); got != nil {
		t.Errorf("Expected nil past end of buffer, got %v", got)
	}
	if got := b.SnapshotFrom(-1); len(got) != 5 {
		t.Errorf("Expected negative offset to read from start, got %d samples", len(got))
	}
}

func TestHandle_ReadsLiveBuffer(t *testing.T) {
	b := NewBuffer()
	h := b.Handle()

	b.Start()
	b.Append([]float32{0.1, 0.2})

	if h.Len() != 2 {
		t.Errorf("Expected handle to see 2 samples, got %d", h.Len())
	}
	if len(h.Snapshot()) != 2 {
		t.Errorf("Expected handle snapshot of 2 samples, got %d", len(h.Snapshot()))
	}
	if len(h.SnapshotFrom(1)) != 1 {
		t.Errorf("Expected handle tail of 1 sample, got %d", len(h.SnapshotFrom(1)))
	}
}

func TestBuffer_ConcurrentAppendAndSnapshot(t *testing.T) {
	b := NewBuffer()
	b.Start()

	const writers = 4
	const frames = 200
	frame := make([]float32, 160)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < frames; j++ {
				b.Append(frame)
			}
		}()
	}

	done := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		last := 0
		for {
			select {
			case <-done:
				return
			default:
			}
			n := len(b.Snapshot())
			if n < last {
				t.Errorf("Snapshot length went backwards: %d -> %d", last, n)
				return
			}
			last = n
		}
	}()

	wg.Wait()
	close(done)
	<-readerDone

	if got := len(b.Stop()); got != writers*frames*len(frame) {
		t.Errorf("Expected %d samples, got %d", writers*frames*len(frame), got)
	}
}
