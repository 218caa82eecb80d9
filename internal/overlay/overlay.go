package overlay

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Overlay shows live dictation feedback. Calls never block the caller.
type Overlay interface {
	// UpdateText replaces the displayed partial transcript
	UpdateText(text string)

	// Finish shows the final text near (x, y) and closes the overlay
	Finish(text string, x, y float64)

	// Close dismisses the overlay without a result
	Close()
}

// Factory opens one overlay per session
type Factory interface {
	Open() (Overlay, error)
}

// ConsoleFactory renders overlays as a single rewritten terminal line
type ConsoleFactory struct {
	out    io.Writer
	logger zerolog.Logger
}

// NewConsoleFactory creates a console overlay factory writing to out (stderr if nil)
func NewConsoleFactory(out io.Writer, logger zerolog.Logger) *ConsoleFactory {
	if out == nil {
		out = os.Stderr
	}
	return &ConsoleFactory{
		out:    out,
		logger: logger.With().Str("component", "overlay").Logger(),
	}
}

// Open starts a new console overlay
func (f *ConsoleFactory) Open() (Overlay, error) {
	o := &ConsoleOverlay{
		out:     f.out,
		logger:  f.logger,
		notify:  make(chan struct{}, 1),
		closing: make(chan finishCmd, 1),
		done:    make(chan struct{}),
	}
	go o.run()
	return o, nil
}

type finishCmd struct {
	text  string
	x, y  float64
	final bool
}

// ConsoleOverlay redraws the latest partial on one terminal line.
// Partials are coalesced so only the newest is drawn.
type ConsoleOverlay struct {
	out    io.Writer
	logger zerolog.Logger

	mu      sync.Mutex
	pending string

	notify  chan struct{}
	closing chan finishCmd
	once    sync.Once
	done    chan struct{}
}

// UpdateText records the latest partial
func (o *ConsoleOverlay) UpdateText(text string) {
	o.mu.Lock()
	o.pending = text
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// Finish draws the final text and stops the overlay
func (o *ConsoleOverlay) Finish(text string, x, y float64) {
	o.once.Do(func() {
		o.closing <- finishCmd{text: text, x: x, y: y, final: true}
	})
}

// Close stops the overlay without a result
func (o *ConsoleOverlay) Close() {
	o.once.Do(func() {
		o.closing <- finishCmd{}
	})
}

// Done is closed once the overlay has drawn its last line
func (o *ConsoleOverlay) Done() <-chan struct{} {
	return o.done
}

func (o *ConsoleOverlay) run() {
	defer close(o.done)

	var shown string
	for {
		select {
		case <-o.notify:
			o.mu.Lock()
			text := o.pending
			o.mu.Unlock()
			if text != shown {
				fmt.Fprintf(o.out, "\r\x1b[K> %s", text)
				shown = text
			}

		case cmd := <-o.closing:
			if cmd.final {
				fmt.Fprintf(o.out, "\r\x1b[K%s\n", cmd.text)
				o.logger.Debug().Float64("x", cmd.x).Float64("y", cmd.y).Msg("Overlay finished")
			} else {
				fmt.Fprint(o.out, "\r\x1b[K")
				o.logger.Debug().Msg("Overlay closed")
			}
			return
		}
	}
}
