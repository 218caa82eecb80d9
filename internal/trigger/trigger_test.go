package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// stubSource is a Source with a fixed outcome
type stubSource struct {
	events chan Event
	err    error
	calls  int
}

func (s *stubSource) Listen(ctx context.Context) (<-chan Event, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

func TestFirstAvailable_UsesFirstWorkingSource(t *testing.T) {
	broken := &stubSource{err: ErrNoKeyboard}
	working := &stubSource{events: make(chan Event)}
	unused := &stubSource{events: make(chan Event)}

	events, err := FirstAvailable(context.Background(), zerolog.Nop(), broken, working, unused)
	if err != nil {
		t.Fatalf("Expected fallback to succeed, got %v", err)
	}
	if events != (<-chan Event)(working.events) {
		t.Error("Expected events from the second source")
	}
	if broken.calls != 1 || working.calls != 1 || unused.calls != 0 {
		t.Errorf("Unexpected Listen calls: %d %d %d", broken.calls, working.calls, unused.calls)
	}
}

func TestFirstAvailable_AllFail(t *testing.T) {
	hookErr := errors.New("no display")
	_, err := FirstAvailable(context.Background(), zerolog.Nop(), &stubSource{err: ErrNoKeyboard}, &stubSource{err: hookErr})

	if !errors.Is(err, ErrNoKeyboard) || !errors.Is(err, hookErr) {
		t.Errorf("Expected both errors joined, got %v", err)
	}
	if _, err := FirstAvailable(context.Background(), zerolog.Nop()); err == nil {
		t.Error("Expected error with no sources")
	}
}

func TestMerge(t *testing.T) {
	a := make(chan Event)
	b := make(chan Event)

	merged := Merge(context.Background(), a, b)

	go func() {
		a <- Event{Kind: Pressed, Source: "a"}
		a <- Event{Kind: Released, Source: "a"}
		close(a)
	}()
	go func() {
		b <- Event{Kind: Pressed, Source: "b"}
		close(b)
	}()

	var fromA []Kind
	count := 0
	for ev := range merged {
		count++
		if ev.Source == "a" {
			fromA = append(fromA, ev.Kind)
		}
	}

	if count != 3 {
		t.Errorf("Expected 3 events, got %d", count)
	}
	if len(fromA) != 2 || fromA[0] != Pressed || fromA[1] != Released {
		t.Errorf("Expected per-source order [pressed released], got %v", fromA)
	}
}

func TestMerge_ClosesOnCancel(t *testing.T) {
	a := make(chan Event)
	ctx, cancel := context.WithCancel(context.Background())

	merged := Merge(ctx, a)
	cancel()

	select {
	case _, ok := <-merged:
		if ok {
			t.Error("Expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("Expected merged channel to close on cancel")
	}
}

func TestKindString(t *testing.T) {
	if Pressed.String() != "pressed" || Released.String() != "released" || Kind(0).String() != "unknown" {
		t.Error("Unexpected Kind strings")
	}
}
