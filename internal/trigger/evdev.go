package trigger

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// KeyRightAlt is the kernel input code for Right Alt (AltGr)
const KeyRightAlt uint16 = 100

// Key event values reported by the kernel
const (
	keyUp     int32 = 0
	keyDown   int32 = 1
	keyRepeat int32 = 2
)

var (
	// ErrNoKeyboard means no input device carrying the trigger key could be opened
	ErrNoKeyboard = errors.New("no readable keyboard with the trigger key (is the user in the 'input' group?)")

	// ErrEvdevUnsupported is returned where the kernel input layer does not exist
	ErrEvdevUnsupported = errors.New("evdev input is only available on linux")
)

// keyDevice is one opened input device delivering key events
type keyDevice interface {
	Path() string
	// ReadKey blocks until the next key event
	ReadKey() (code uint16, value int32, err error)
	Close() error
}

// EvdevSource reads the trigger key straight from the kernel input devices,
// one reader per keyboard that has the key. It works under X11, XWayland and
// native Wayland alike.
type EvdevSource struct {
	keycode    uint16
	logger     zerolog.Logger
	open       func(keycode uint16) ([]keyDevice, error)
	retryDelay time.Duration
}

// NewEvdevSource creates a source for keycode on every matching input device
func NewEvdevSource(keycode uint16, logger zerolog.Logger) *EvdevSource {
	if keycode == 0 {
		keycode = KeyRightAlt
	}
	return &EvdevSource{
		keycode:    keycode,
		logger:     logger.With().Str("component", "trigger").Str("backend", "evdev").Logger(),
		open:       openEvdevDevices,
		retryDelay: 100 * time.Millisecond,
	}
}

// Listen opens the devices and starts one reader each. The channel closes once
// ctx is done and every device is closed.
func (s *EvdevSource) Listen(ctx context.Context) (<-chan Event, error) {
	devices, err := s.open(s.keycode)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoKeyboard
	}

	out := make(chan Event, 16)

	var wg sync.WaitGroup
	for _, dev := range devices {
		s.logger.Info().Str("device", dev.Path()).Uint16("keycode", s.keycode).Msg("Keyboard device listening")
		wg.Add(1)
		go func(dev keyDevice) {
			defer wg.Done()
			s.read(ctx, dev, out)
		}(dev)
	}

	// A blocked read only returns once its device is closed
	go func() {
		<-ctx.Done()
		for _, dev := range devices {
			if err := dev.Close(); err != nil {
				s.logger.Debug().Err(err).Str("device", dev.Path()).Msg("Failed to close input device")
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

func (s *EvdevSource) read(ctx context.Context, dev keyDevice, out chan<- Event) {
	for {
		code, value, err := dev.ReadKey()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if deviceGone(err) {
				s.logger.Warn().Err(err).Str("device", dev.Path()).Msg("Input device went away")
				return
			}
			s.logger.Warn().Err(err).Str("device", dev.Path()).Msg("Input read failed, retrying")
			select {
			case <-time.After(s.retryDelay):
				continue
			case <-ctx.Done():
				return
			}
		}

		ev, ok := s.translate(code, value)
		if !ok {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// translate skips other keys and auto-repeat
func (s *EvdevSource) translate(code uint16, value int32) (Event, bool) {
	if code != s.keycode {
		return Event{}, false
	}
	switch value {
	case keyDown:
		return Event{Kind: Pressed, Source: "keyboard", At: time.Now()}, true
	case keyUp:
		return Event{Kind: Released, Source: "keyboard", At: time.Now()}, true
	case keyRepeat:
		return Event{}, false
	default:
		return Event{}, false
	}
}

func deviceGone(err error) bool {
	return errors.Is(err, os.ErrClosed) || errors.Is(err, syscall.ENODEV) || errors.Is(err, io.EOF)
}
