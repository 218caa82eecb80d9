package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/gomidi/midi/v2"
)

const (
	// DefaultMIDIPort matches the wireless foot switch input port
	DefaultMIDIPort = "FS-1-WL"
	// DefaultMIDIController is the control change the pedal sends
	DefaultMIDIController uint8 = 85
)

// Pedal values
const (
	pedalDown uint8 = 127
	pedalUp   uint8 = 0
)

// ErrNoMIDIDevice means no MIDI input port matched
var ErrNoMIDIDevice = errors.New("no matching MIDI input port")

// PortListener connects to the input port whose name contains match and calls
// onMessage for every message until stop is called
type PortListener func(match string, onMessage func(midi.Message)) (stop func(), err error)

// MIDISource turns a foot pedal's control change into trigger events
type MIDISource struct {
	port       string
	controller uint8
	logger     zerolog.Logger
	listen     PortListener
}

// NewMIDISource creates a source for the pedal on port sending controller
func NewMIDISource(port string, controller uint8, logger zerolog.Logger) *MIDISource {
	if port == "" {
		port = DefaultMIDIPort
	}
	return &MIDISource{
		port:       port,
		controller: controller,
		logger:     logger.With().Str("component", "trigger").Str("backend", "midi").Logger(),
		listen:     listenPort,
	}
}

func listenPort(match string, onMessage func(midi.Message)) (func(), error) {
	in, err := midi.FindInPort(match)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoMIDIDevice, match, err)
	}
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		onMessage(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("listen on MIDI port %s: %w", in.String(), err)
	}
	return stop, nil
}

// Listen connects to the pedal. The channel closes once ctx is done.
func (s *MIDISource) Listen(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event, 16)

	// The driver calls back on its own goroutine and may race the close
	var (
		mu     sync.Mutex
		closed bool
	)
	emit := func(msg midi.Message) {
		ev, ok := s.translate(msg)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	stop, err := s.listen(s.port, emit)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("port", s.port).Uint8("controller", s.controller).Msg("MIDI foot pedal listening")

	go func() {
		<-ctx.Done()
		stop()

		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()

	return out, nil
}

// translate maps the configured controller to press and release. Other
// messages and intermediate values are ignored.
func (s *MIDISource) translate(msg midi.Message) (Event, bool) {
	var channel, controller, value uint8
	if !msg.GetControlChange(&channel, &controller, &value) || controller != s.controller {
		return Event{}, false
	}

	switch value {
	case pedalDown:
		return Event{Kind: Pressed, Source: "pedal", At: time.Now()}, true
	case pedalUp:
		return Event{Kind: Released, Source: "pedal", At: time.Now()}, true
	default:
		s.logger.Debug().Uint8("value", value).Msg("Ignoring partial pedal value")
		return Event{}, false
	}
}
