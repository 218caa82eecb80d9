package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind is the edge reported by a trigger
type Kind int

const (
	Pressed Kind = iota + 1
	Released
)

func (k Kind) String() string {
	switch k {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// Event is one press or release of a push-to-talk trigger
type Event struct {
	Kind   Kind
	Source string
	At     time.Time
}

// Source produces trigger events until ctx is done, then closes the channel
type Source interface {
	Listen(ctx context.Context) (<-chan Event, error)
}

// Merge fans several event channels into one. Per-source order is kept.
// The output closes once every input has closed or ctx is done.
func Merge(ctx context.Context, inputs ...<-chan Event) <-chan Event {
	out := make(chan Event)

	var wg sync.WaitGroup
	for _, in := range inputs {
		wg.Add(1)
		go func(in <-chan Event) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-in:
					if !ok {
						return
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}(in)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// FirstAvailable listens on the first source that starts, trying them in order.
// If none starts the joined errors are returned.
func FirstAvailable(ctx context.Context, logger zerolog.Logger, sources ...Source) (<-chan Event, error) {
	if len(sources) == 0 {
		return nil, errors.New("no trigger sources configured")
	}

	var errs []error
	for _, src := range sources {
		events, err := src.Listen(ctx)
		if err == nil {
			return events, nil
		}
		logger.Warn().Err(err).Msg("Trigger source unavailable, trying next")
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
