package paste

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
	"github.com/rs/zerolog"
)

// ErrClipboardUnavailable is returned when no clipboard utility is installed
var ErrClipboardUnavailable = errors.New("clipboard unavailable (install wl-clipboard, xclip or xsel)")

// Clipboard holds text for the paste keystroke
type Clipboard interface {
	WriteAll(text string) error
}

// Keystroker injects the paste shortcut into the focused window
type Keystroker interface {
	Paste() error
}

// Config holds paste timings
type Config struct {
	// SettleDelay lets focus return to the target window after the overlay closes
	SettleDelay time.Duration

	// InitDelay is waited once after creating the virtual keyboard. Linux
	// needs it before the device accepts events.
	InitDelay time.Duration
}

// Paster delivers transcripts by copying them to the clipboard and sending Ctrl+V.
// XWayland windows are typed into instead when a Typer is set.
// The text stays on the clipboard afterwards.
type Paster struct {
	clipboard Clipboard
	keys      Keystroker
	focus     FocusInspector
	typer     Typer
	settle    time.Duration
	logger    zerolog.Logger
}

// New creates a Paster backed by the system clipboard and a virtual keyboard
func New(cfg Config, logger zerolog.Logger) (*Paster, error) {
	if clipboard.Unsupported {
		return nil, ErrClipboardUnavailable
	}

	kb, err := newKeybdShortcut(cfg.InitDelay)
	if err != nil {
		return nil, err
	}

	p := NewWithBackends(systemClipboard{}, kb, cfg.SettleDelay, logger)
	if typer := NewXdotoolTyper(); typer != nil {
		p.WithXWaylandTyping(NewHyprlandFocus(logger), typer)
	}
	return p, nil
}

// NewWithBackends creates a Paster with explicit clipboard and keystroke backends
func NewWithBackends(clip Clipboard, keys Keystroker, settle time.Duration, logger zerolog.Logger) *Paster {
	return &Paster{
		clipboard: clip,
		keys:      keys,
		settle:    settle,
		logger:    logger.With().Str("component", "paste").Logger(),
	}
}

// WithXWaylandTyping types into windows focus reports as XWayland clients
func (p *Paster) WithXWaylandTyping(focus FocusInspector, typer Typer) *Paster {
	p.focus = focus
	p.typer = typer
	return p
}

// Deliver pastes text into the focused window. Empty text is a no-op.
func (p *Paster) Deliver(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		p.logger.Warn().Msg("Empty text, nothing to paste")
		return nil
	}

	if p.settle > 0 {
		timer := time.NewTimer(p.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := p.clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	if p.typer != nil && p.focus != nil && p.focus.FocusedXWayland(ctx) {
		if err := p.typer.Type(ctx, text); err != nil {
			return fmt.Errorf("failed to type into XWayland window: %w", err)
		}
		p.logger.Info().Int("len", len(text)).Msg("Typed into XWayland window")
		return nil
	}

	if err := p.keys.Paste(); err != nil {
		return fmt.Errorf("failed to send paste shortcut: %w", err)
	}

	p.logger.Info().Int("len", len(text)).Msg("Paste complete")
	return nil
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// keybdShortcut sends Ctrl+V through a virtual keyboard device
type keybdShortcut struct {
	kb keybd_event.KeyBonding
}

func newKeybdShortcut(initDelay time.Duration) (*keybdShortcut, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("virtual keyboard unavailable: %w", err)
	}

	if initDelay <= 0 && runtime.GOOS == "linux" {
		initDelay = 2 * time.Second
	}
	time.Sleep(initDelay)

	kb.HasCTRL(true)
	kb.SetKeys(keybd_event.VK_V)
	return &keybdShortcut{kb: kb}, nil
}

func (k *keybdShortcut) Paste() error {
	return k.kb.Launching()
}
