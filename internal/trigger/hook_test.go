package trigger

import (
	"context"
	"testing"
	"time"

	hook "github.com/robotn/gohook"
	"github.com/rs/zerolog"
)

func fakeHook(keycode uint16) (*HookSource, chan hook.Event, chan struct{}) {
	raw := make(chan hook.Event, 16)
	ended := make(chan struct{})

	k := NewHookSource(keycode, zerolog.Nop())
	k.start = func() chan hook.Event { return raw }
	k.end = func() { close(ended) }
	return k, raw, ended
}

func TestHookSource_TranslatesKey(t *testing.T) {
	k, raw, _ := fakeHook(HookKeycodeRightAlt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := k.Listen(ctx)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	raw <- hook.Event{Kind: hook.KeyHold, Keycode: 30}                  // other key
	raw <- hook.Event{Kind: hook.KeyHold, Keycode: HookKeycodeRightAlt} // press
	raw <- hook.Event{Kind: hook.KeyHold, Keycode: HookKeycodeRightAlt} // auto-repeat
	raw <- hook.Event{Kind: hook.MouseMove, Keycode: HookKeycodeRightAlt}
	raw <- hook.Event{Kind: hook.KeyUp, Keycode: HookKeycodeRightAlt}

	want := []Kind{Pressed, Pressed, Released}
	for i, kind := range want {
		select {
		case ev := <-events:
			if ev.Kind != kind {
				t.Errorf("Event %d: expected %s, got %s", i, kind, ev.Kind)
			}
			if ev.Source != "keyboard" {
				t.Errorf("Expected source 'keyboard', got %q", ev.Source)
			}
			if ev.At.IsZero() {
				t.Error("Expected event timestamp")
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for event %d", i)
		}
	}
}

func TestHookSource_StopsOnCancel(t *testing.T) {
	k, _, ended := fakeHook(0)
	if k.keycode != HookKeycodeRightAlt {
		t.Errorf("Expected default keycode %d, got %d", HookKeycodeRightAlt, k.keycode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, _ := k.Listen(ctx)
	cancel()

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("Expected hook to be ended on cancel")
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("Expected no events after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("Expected event channel to close")
	}
}

