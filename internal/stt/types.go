package stt

import (
	"context"
	"errors"

	"github.com/lexiqai/justspeak/internal/audio"
)

var (
	// ErrStreamTimeout is returned when no final transcript arrives in time
	ErrStreamTimeout = errors.New("timed out waiting for final transcript")

	// ErrEmptyTranscript is returned when the service produced no text
	ErrEmptyTranscript = errors.New("empty transcript")

	// ErrStreamNotStarted is returned when a session ended before enough
	// audio was captured to open the connection
	ErrStreamNotStarted = errors.New("stream was never started")
)

// Pipeline is one in-flight streaming transcription
type Pipeline interface {
	// Finish tells the sender to flush the remaining audio and signal done.
	// Safe to call more than once.
	Finish()

	// Await blocks until the final transcript is available, the bounded
	// wait expires or ctx is done.
	Await(ctx context.Context) (string, error)

	// Close tears down the connection. Safe to call more than once.
	Close()
}

// StreamStarter opens streaming pipelines over a live sample source
type StreamStarter interface {
	Start(ctx context.Context, src audio.SampleSource, onPartial func(string)) Pipeline
}

// BatchTranscriber transcribes a complete recording in one request
type BatchTranscriber interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
}
