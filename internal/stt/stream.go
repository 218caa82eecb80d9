package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/justspeak/internal/audio"
	"github.com/lexiqai/justspeak/internal/observability"
	"github.com/lexiqai/justspeak/internal/resilience"
)

// StreamConfig configures streaming pipelines
type StreamConfig struct {
	ServerURL    string
	TickInterval time.Duration // How often buffered audio is sent
	FinalTimeout time.Duration // Max wait for the final transcript after done is sent
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	MinSamples   int // Audio required before the connection is opened
}

// DefaultStreamConfig returns the standard timings for serverURL
func DefaultStreamConfig(serverURL string) StreamConfig {
	return StreamConfig{
		ServerURL:    serverURL,
		TickInterval: 100 * time.Millisecond,
		FinalTimeout: 10 * time.Second,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		MinSamples:   audio.SamplesFor(300 * time.Millisecond),
	}
}

// Streamer opens one websocket pipeline per session. All pipelines share
// the circuit breaker guarding the dial.
type Streamer struct {
	cfg     StreamConfig
	wsURL   string
	dialer  *websocket.Dialer
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewStreamer creates a streamer for the service at cfg.ServerURL
func NewStreamer(cfg StreamConfig, breaker *resilience.CircuitBreaker, logger zerolog.Logger) (*Streamer, error) {
	wsURL, err := StreamURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	def := DefaultStreamConfig(cfg.ServerURL)
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.FinalTimeout <= 0 {
		cfg.FinalTimeout = def.FinalTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MinSamples < 0 {
		cfg.MinSamples = 0
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("stream", 5, 30*time.Second)
	}

	return &Streamer{
		cfg:   cfg,
		wsURL: wsURL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		breaker: breaker,
		logger:  logger.With().Str("component", "stream").Logger(),
	}, nil
}

// Start begins a pipeline reading from src. The connection is opened once
// src holds MinSamples, so short sessions never reach the network.
// onPartial is called from the receiver goroutine.
func (s *Streamer) Start(ctx context.Context, src audio.SampleSource, onPartial func(string)) Pipeline {
	ctx, cancel := context.WithCancel(ctx)

	st := &Stream{
		streamer:   s,
		src:        src,
		onPartial:  onPartial,
		logger:     s.logger,
		cancel:     cancel,
		finish:     make(chan struct{}),
		senderDone: make(chan struct{}),
		results:    make(chan streamResult, 1),
	}
	go st.send(ctx)
	return st
}

type streamResult struct {
	text string
	err  error
}

// Stream is a single streaming transcription. The sender goroutine owns
// the cursor and every data write; the receiver goroutine owns reads.
type Stream struct {
	streamer  *Streamer
	src       audio.SampleSource
	onPartial func(string)
	logger    zerolog.Logger
	cancel    context.CancelFunc

	finish     chan struct{}
	finishOnce sync.Once
	closeOnce  sync.Once

	// Written by the sender before senderDone is closed
	senderDone chan struct{}
	sendErr    error
	doneSentAt time.Time
	cursor     int

	results chan streamResult

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Finish signals the sender to flush and send done
func (st *Stream) Finish() {
	st.finishOnce.Do(func() {
		close(st.finish)
	})
}

// Await returns the final transcript. It waits for the sender to flush and
// send done, then at most FinalTimeout from that moment. Call once, after Finish.
func (st *Stream) Await(ctx context.Context) (string, error) {
	select {
	case <-st.senderDone:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if st.sendErr != nil {
		st.record(st.sendErr)
		return "", st.sendErr
	}

	wait := st.streamer.cfg.FinalTimeout - time.Since(st.doneSentAt)
	if wait < 0 {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	var (
		text string
		err  error
	)
	select {
	case r := <-st.results:
		text, err = strings.TrimSpace(r.text), r.err
		if err == nil && text == "" {
			err = ErrEmptyTranscript
		}
	case <-timer.C:
		err = ErrStreamTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}

	st.record(err)
	if err != nil {
		return "", err
	}
	return text, nil
}

// Close cancels the sender and closes the connection
func (st *Stream) Close() {
	st.closeOnce.Do(func() {
		st.cancel()

		st.mu.Lock()
		st.closed = true
		conn := st.conn
		st.mu.Unlock()

		if conn != nil {
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			conn.Close()
		}
	})
}

// Sent returns how many samples have been transmitted. Only meaningful
// after Await has returned.
func (st *Stream) Sent() int {
	<-st.senderDone
	return st.cursor
}

func (st *Stream) send(ctx context.Context) {
	defer close(st.senderDone)

	conn, err := st.waitAndDial(ctx)
	if err != nil {
		st.sendErr = err
		return
	}

	go st.receive(conn)

	if err := st.stream(ctx, conn); err != nil {
		st.sendErr = err
	}
}

func (st *Stream) waitAndDial(ctx context.Context) (*websocket.Conn, error) {
	ticker := time.NewTicker(st.streamer.cfg.TickInterval)
	defer ticker.Stop()

	minSamples := st.streamer.cfg.MinSamples
	for {
		if st.src.Len() >= minSamples {
			return st.dial(ctx)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-st.finish:
			if st.src.Len() >= minSamples {
				return st.dial(ctx)
			}
			return nil, ErrStreamNotStarted
		case <-ticker.C:
		}
	}
}

func (st *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	breaker := st.streamer.breaker
	if err := breaker.Allow(); err != nil {
		return nil, fmt.Errorf("stream dial: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, st.streamer.cfg.DialTimeout)
	defer cancel()

	conn, resp, err := st.streamer.dialer.DialContext(dialCtx, st.streamer.wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	breaker.RecordResult(err == nil)
	if err != nil {
		observability.IncrementCircuitBreakerFailures(breaker.Name())
		return nil, fmt.Errorf("stream dial: %w", err)
	}

	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		conn.Close()
		return nil, context.Canceled
	}
	st.conn = conn
	st.mu.Unlock()

	st.logger.Debug().Str("url", st.streamer.wsURL).Int("buffered_samples", st.src.Len()).Msg("Stream connected")
	return conn, nil
}

func (st *Stream) stream(ctx context.Context, conn *websocket.Conn) error {
	if err := st.flush(conn); err != nil {
		return err
	}

	ticker := time.NewTicker(st.streamer.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-st.finish:
			if err := st.flush(conn); err != nil {
				return err
			}
			if err := st.write(conn, websocket.TextMessage, encodeDone()); err != nil {
				return fmt.Errorf("send done: %w", err)
			}
			st.doneSentAt = time.Now()
			st.logger.Debug().Int("samples_sent", st.cursor).Msg("Stream done sent")
			return nil

		case <-ticker.C:
			if err := st.flush(conn); err != nil {
				return err
			}
		}
	}
}

// flush sends every sample past the cursor as one binary frame
func (st *Stream) flush(conn *websocket.Conn) error {
	samples := st.src.SnapshotFrom(st.cursor)
	if len(samples) == 0 {
		return nil
	}

	data := audio.EncodePCM16(samples)
	if err := st.write(conn, websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	st.cursor += len(samples)
	observability.RecordAudioBytes(len(data))
	return nil
}

func (st *Stream) write(conn *websocket.Conn, messageType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(st.streamer.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}

func (st *Stream) receive(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			st.results <- streamResult{err: fmt.Errorf("stream receive: %w", err)}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			st.logger.Debug().Err(err).Msg("Ignoring undecodable frame")
			continue
		}

		switch msg.Type {
		case MessagePartial:
			if st.onPartial != nil {
				st.onPartial(msg.Text)
			}
		case MessageFinal:
			st.results <- streamResult{text: msg.Text}
			return
		default:
			st.logger.Debug().Str("type", string(msg.Type)).Msg("Ignoring unknown message type")
		}
	}
}

func (st *Stream) record(err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrStreamNotStarted):
		status = "not_started"
	case errors.Is(err, ErrStreamTimeout):
		status = "timeout"
	case errors.Is(err, ErrEmptyTranscript):
		status = "empty"
	case errors.Is(err, resilience.ErrCircuitOpen):
		status = "circuit_open"
	default:
		status = "error"
	}
	observability.RecordStreamResult(status)
}
