package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/justspeak/internal/audio"
	"github.com/lexiqai/justspeak/internal/observability"
	"github.com/lexiqai/justspeak/internal/overlay"
	"github.com/lexiqai/justspeak/internal/stt"
	"github.com/lexiqai/justspeak/internal/trigger"
)

// State of the dictation engine
type State int32

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return "unknown"
	}
}

// Recorder gates the always-running capture into the session buffer
type Recorder interface {
	StartRecording()
	StopRecording() []float32
	Source() audio.SampleSource
}

// Deliverer hands the final transcript to the user
type Deliverer interface {
	Deliver(ctx context.Context, text string) error
}

// Config controls session behavior
type Config struct {
	// Streaming enables the live pipeline; when false every session is batch-only
	Streaming bool

	// MinDuration is the shortest recording that gets transcribed
	MinDuration time.Duration
}

// Deps are the collaborators driven by the machine. Streamer, Overlays and
// Locator are optional.
type Deps struct {
	Recorder  Recorder
	Streamer  stt.StreamStarter
	Batch     stt.BatchTranscriber
	Overlays  overlay.Factory
	Locator   overlay.Locator
	Deliverer Deliverer
}

// Machine is the Idle/Recording state machine. Events are handled one at a
// time on the goroutine calling Run (or Handle).
type Machine struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	state  atomic.Int32
	active *activeSession
}

type activeSession struct {
	id       string
	logger   zerolog.Logger
	metrics  *observability.Metrics
	pipeline stt.Pipeline
	overlay  overlay.Overlay
	started  time.Time
}

// New creates a machine in the Idle state
func New(cfg Config, deps Deps, logger zerolog.Logger) *Machine {
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = 300 * time.Millisecond
	}
	return &Machine{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// State returns the current state. Safe from any goroutine.
func (m *Machine) State() State {
	return State(m.state.Load())
}

func (m *Machine) setState(s State) {
	m.state.Store(int32(s))
}

// Run handles events until the channel closes or ctx is done. A session
// still recording at that point is aborted without delivery.
func (m *Machine) Run(ctx context.Context, events <-chan trigger.Event) error {
	for {
		select {
		case <-ctx.Done():
			m.abort("shutdown")
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				m.abort("trigger closed")
				return nil
			}
			m.Handle(ctx, ev)
		}
	}
}

// Handle applies one trigger event
func (m *Machine) Handle(ctx context.Context, ev trigger.Event) {
	switch ev.Kind {
	case trigger.Pressed:
		if m.active != nil {
			m.active.logger.Debug().Msg("Press while recording, ignoring")
			return
		}
		m.press(ctx)

	case trigger.Released:
		if m.active == nil {
			m.logger.Debug().Msg("Release while idle, ignoring")
			return
		}
		m.release(ctx)
	}
}

func (m *Machine) press(ctx context.Context) {
	id := observability.NewSessionID()
	s := &activeSession{
		id:      id,
		logger:  observability.WithSessionID(m.logger, id),
		metrics: observability.NewSessionMetrics(id),
		started: time.Now(),
	}

	m.deps.Recorder.StartRecording()

	if m.deps.Overlays != nil {
		ov, err := m.deps.Overlays.Open()
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to open overlay")
			s.metrics.RecordError("overlay_open", "overlay")
		} else {
			s.overlay = ov
		}
	}

	if m.cfg.Streaming && m.deps.Streamer != nil {
		var onPartial func(string)
		if s.overlay != nil {
			onPartial = s.overlay.UpdateText
		}
		s.pipeline = m.deps.Streamer.Start(ctx, m.deps.Recorder.Source(), onPartial)
	}

	m.active = s
	m.setState(Recording)
	s.metrics.RecordSessionStart()
	s.logger.Info().Bool("streaming", s.pipeline != nil).Bool("overlay", s.overlay != nil).Msg("Recording started")
}

func (m *Machine) release(ctx context.Context) {
	s := m.active
	m.active = nil
	defer m.setState(Idle)

	s.metrics.RecordRelease()

	var (
		streamText string
		streamErr  error
	)
	if s.pipeline != nil {
		defer s.pipeline.Close()
		s.pipeline.Finish()
		streamText, streamErr = s.pipeline.Await(ctx)
	}

	samples := m.deps.Recorder.StopRecording()
	duration := audio.Duration(len(samples))
	logger := s.logger.With().
		Dur("duration", duration).
		Dur("held", time.Since(s.started)).
		Int("samples", len(samples)).
		Logger()

	if ctx.Err() != nil {
		logger.Warn().Msg("Session aborted during release")
		m.closeOverlay(s)
		s.metrics.RecordSessionEnd(observability.OutcomeAborted, duration)
		return
	}

	if duration < m.cfg.MinDuration {
		logger.Warn().Msg("Recording too short, ignoring")
		m.closeOverlay(s)
		s.metrics.RecordSessionEnd(observability.OutcomeDiscardedShort, duration)
		return
	}

	text, source, err := m.resolve(ctx, logger, s, streamText, streamErr, samples)
	if err != nil {
		logger.Error().Err(err).Msg("Transcription failed")
		m.closeOverlay(s)
		s.metrics.RecordError("transcription", "batch")
		s.metrics.RecordSessionEnd(observability.OutcomeFailed, duration)
		return
	}
	if text == "" {
		logger.Warn().Str("source", source).Msg("Transcription returned empty text")
		m.closeOverlay(s)
		s.metrics.RecordSessionEnd(observability.OutcomeEmpty, duration)
		return
	}
	s.metrics.RecordTranscript(source)

	if s.overlay != nil {
		x, y := m.cursor(ctx)
		s.overlay.Finish(text, x, y)
	}

	if err := m.deps.Deliverer.Deliver(ctx, text); err != nil {
		logger.Error().Err(err).Msg("Failed to deliver transcript")
		s.metrics.RecordDelivery(false)
		s.metrics.RecordError("delivery", "paste")
		s.metrics.RecordSessionEnd(observability.OutcomeFailed, duration)
		return
	}
	s.metrics.RecordDelivery(true)
	s.metrics.RecordSessionEnd(observability.OutcomeDelivered, duration)

	logger.Info().Str("source", source).Int("chars", len(text)).Msg("Transcript delivered")
}

// resolve picks the streaming result when usable, otherwise runs the batch
// fallback exactly once on the complete recording
func (m *Machine) resolve(ctx context.Context, logger zerolog.Logger, s *activeSession, streamText string, streamErr error, samples []float32) (string, string, error) {
	if s.pipeline != nil {
		streamText = strings.TrimSpace(streamText)
		if streamErr == nil && streamText != "" {
			return streamText, observability.SourceStream, nil
		}
		if streamErr == nil {
			streamErr = stt.ErrEmptyTranscript
		}

		event := logger.Warn()
		if errors.Is(streamErr, stt.ErrStreamNotStarted) {
			event = logger.Debug()
		}
		event.Err(streamErr).Msg("Streaming result unusable, falling back to batch")
	}

	if m.deps.Batch == nil {
		return "", observability.SourceBatch, errors.New("no batch transcriber configured")
	}

	text, err := m.deps.Batch.Transcribe(ctx, samples)
	if err != nil {
		return "", observability.SourceBatch, err
	}
	return strings.TrimSpace(text), observability.SourceBatch, nil
}

func (m *Machine) cursor(ctx context.Context) (float64, float64) {
	if m.deps.Locator == nil {
		return overlay.FallbackX, overlay.FallbackY
	}
	return m.deps.Locator.CursorPosition(ctx)
}

func (m *Machine) closeOverlay(s *activeSession) {
	if s.overlay != nil {
		s.overlay.Close()
	}
}

// abort ends a recording session without transcription or delivery
func (m *Machine) abort(reason string) {
	s := m.active
	if s == nil {
		return
	}
	m.active = nil

	if s.pipeline != nil {
		s.pipeline.Close()
	}
	samples := m.deps.Recorder.StopRecording()
	m.closeOverlay(s)
	m.setState(Idle)

	duration := audio.Duration(len(samples))
	s.metrics.RecordSessionEnd(observability.OutcomeAborted, duration)
	s.logger.Warn().Str("reason", reason).Dur("duration", duration).Msg("Session aborted")
}
