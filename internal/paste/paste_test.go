package paste

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeClipboard struct {
	text string
	err  error
}

func (c *fakeClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

type fakeKeys struct {
	pastes int
	err    error
}

func (k *fakeKeys) Paste() error {
	k.pastes++
	return k.err
}

type fakeFocus struct {
	xwayland bool
	calls    int
}

func (f *fakeFocus) FocusedXWayland(ctx context.Context) bool {
	f.calls++
	return f.xwayland
}

type fakeTyper struct {
	typed []string
	err   error
}

func (f *fakeTyper) Type(ctx context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.typed = append(f.typed, text)
	return nil
}

func TestPaster_Deliver(t *testing.T) {
	clip := &fakeClipboard{}
	keys := &fakeKeys{}
	p := NewWithBackends(clip, keys, 10*time.Millisecond, zerolog.Nop())

	start := time.Now()
	if err := p.Deliver(context.Background(), "hello world"); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Expected settle delay before paste, took %v", elapsed)
	}
	if clip.text != "hello world" {
		t.Errorf("Expected clipboard 'hello world', got %q", clip.text)
	}
	if keys.pastes != 1 {
		t.Errorf("Expected 1 paste shortcut, got %d", keys.pastes)
	}
}

func TestPaster_EmptyTextIsNoop(t *testing.T) {
	clip := &fakeClipboard{}
	keys := &fakeKeys{}
	p := NewWithBackends(clip, keys, 0, zerolog.Nop())

	if err := p.Deliver(context.Background(), "   "); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if keys.pastes != 0 || clip.text != "" {
		t.Error("Expected nothing pasted for empty text")
	}
}

func TestPaster_ClipboardError(t *testing.T) {
	clip := &fakeClipboard{err: errors.New("no display")}
	keys := &fakeKeys{}
	p := NewWithBackends(clip, keys, 0, zerolog.Nop())

	if err := p.Deliver(context.Background(), "text"); err == nil {
		t.Error("Expected clipboard error")
	}
	if keys.pastes != 0 {
		t.Error("Expected no keystroke after clipboard failure")
	}
}

func TestPaster_KeystrokeError(t *testing.T) {
	keyErr := errors.New("uinput denied")
	p := NewWithBackends(&fakeClipboard{}, &fakeKeys{err: keyErr}, 0, zerolog.Nop())

	if err := p.Deliver(context.Background(), "text"); !errors.Is(err, keyErr) {
		t.Errorf("Expected wrapped keystroke error, got %v", err)
	}
}

func TestPaster_CancelDuringSettle(t *testing.T) {
	clip := &fakeClipboard{}
	keys := &fakeKeys{}
	p := NewWithBackends(clip, keys, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Deliver(ctx, "text"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if keys.pastes != 0 {
		t.Error("Expected no paste after cancel")
	}
}

func TestPaster_TypesIntoXWayland(t *testing.T) {
	clip := &fakeClipboard{}
	keys := &fakeKeys{}
	typer := &fakeTyper{}
	p := NewWithBackends(clip, keys, 0, zerolog.Nop()).WithXWaylandTyping(&fakeFocus{xwayland: true}, typer)

	if err := p.Deliver(context.Background(), "hello x"); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if len(typer.typed) != 1 || typer.typed[0] != "hello x" {
		t.Errorf("Expected text typed once, got %v", typer.typed)
	}
	if keys.pastes != 0 {
		t.Errorf("Expected no paste shortcut for XWayland, got %d", keys.pastes)
	}
	if clip.text != "hello x" {
		t.Errorf("Expected clipboard backup, got %q", clip.text)
	}
}

func TestPaster_NativeWaylandUsesShortcut(t *testing.T) {
	keys := &fakeKeys{}
	typer := &fakeTyper{}
	focus := &fakeFocus{}
	p := NewWithBackends(&fakeClipboard{}, keys, 0, zerolog.Nop()).WithXWaylandTyping(focus, typer)

	if err := p.Deliver(context.Background(), "hello wayland"); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if focus.calls != 1 {
		t.Errorf("Expected focused window checked once, got %d", focus.calls)
	}
	if keys.pastes != 1 || len(typer.typed) != 0 {
		t.Errorf("Expected paste shortcut only, got %d pastes and %v typed", keys.pastes, typer.typed)
	}
}

func TestPaster_NoTyperUsesShortcut(t *testing.T) {
	keys := &fakeKeys{}
	focus := &fakeFocus{xwayland: true}
	p := NewWithBackends(&fakeClipboard{}, keys, 0, zerolog.Nop()).WithXWaylandTyping(focus, nil)

	if err := p.Deliver(context.Background(), "text"); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if keys.pastes != 1 {
		t.Errorf("Expected paste shortcut without a typer, got %d", keys.pastes)
	}
	if focus.calls != 0 {
		t.Error("Expected focus not to be checked without a typer")
	}
}

func TestPaster_TyperError(t *testing.T) {
	typeErr := errors.New("xdotool: cannot open display")
	p := NewWithBackends(&fakeClipboard{}, &fakeKeys{}, 0, zerolog.Nop()).
		WithXWaylandTyping(&fakeFocus{xwayland: true}, &fakeTyper{err: typeErr})

	if err := p.Deliver(context.Background(), "text"); !errors.Is(err, typeErr) {
		t.Errorf("Expected wrapped typer error, got %v", err)
	}
}
