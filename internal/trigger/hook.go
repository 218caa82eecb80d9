package trigger

import (
	"context"
	"time"

	hook "github.com/robotn/gohook"
	"github.com/rs/zerolog"
)

// HookKeycodeRightAlt is the Right Alt (AltGr) raw keycode seen by the hook
const HookKeycodeRightAlt uint16 = 0x0E38

// HookSource reports presses and releases of a single global key through the
// X11 keyboard hook. It is the fallback when input devices cannot be read;
// native Wayland windows never reach it. Auto-repeat arrives as extra presses.
type HookSource struct {
	keycode uint16
	logger  zerolog.Logger

	start func() chan hook.Event
	end   func()
}

// NewHookSource creates a source for keycode using the global keyboard hook
func NewHookSource(keycode uint16, logger zerolog.Logger) *HookSource {
	if keycode == 0 {
		keycode = HookKeycodeRightAlt
	}
	return &HookSource{
		keycode: keycode,
		logger:  logger.With().Str("component", "trigger").Str("backend", "x11").Logger(),
		start:   hook.Start,
		end:     hook.End,
	}
}

// Listen starts the hook. Only one hook may run per process.
func (k *HookSource) Listen(ctx context.Context) (<-chan Event, error) {
	raw := k.start()
	out := make(chan Event, 16)

	k.logger.Info().Uint16("keycode", k.keycode).Msg("X11 keyboard hook listening")

	go func() {
		defer close(out)
		defer k.end()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-raw:
				if !ok {
					return
				}
				e, match := k.translate(ev)
				if !match {
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (k *HookSource) translate(ev hook.Event) (Event, bool) {
	if ev.Keycode != k.keycode {
		return Event{}, false
	}

	at := ev.When
	if at.IsZero() {
		at = time.Now()
	}

	switch ev.Kind {
	case hook.KeyHold, hook.KeyDown:
		return Event{Kind: Pressed, Source: "keyboard", At: at}, true
	case hook.KeyUp:
		return Event{Kind: Released, Source: "keyboard", At: at}, true
	default:
		return Event{}, false
	}
}
