package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// ErrNoInputDevice is returned when the microphone stream cannot be opened or started
var ErrNoInputDevice = errors.New("no usable audio input device")

// CaptureConfig holds configuration for microphone capture
type CaptureConfig struct {
	// FramesPerBuffer is the device callback size; 0 lets the host choose
	FramesPerBuffer int
}

// Capture owns the microphone input stream. The stream runs for the lifetime
// of the process; sessions only arm and disarm the sample buffer.
type Capture struct {
	buffer *Buffer
	stream *portaudio.Stream
	logger zerolog.Logger

	closeOnce sync.Once
}

// NewCapture opens and starts the default input device at 16 kHz mono float32.
// A failure here is fatal to the caller: no session is possible without a microphone.
func NewCapture(cfg CaptureConfig, logger zerolog.Logger) (*Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize PortAudio: %v", ErrNoInputDevice, err)
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
	}

	c := newCapture(NewBuffer(), logger)

	stream, err := portaudio.OpenDefaultStream(Channels, 0, float64(SampleRate), cfg.FramesPerBuffer, c.onFrame)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: failed to open input stream: %v", ErrNoInputDevice, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: failed to start input stream: %v", ErrNoInputDevice, err)
	}
	c.stream = stream

	logger.Info().
		Str("device", device.Name).
		Int("sample_rate", SampleRate).
		Msg("Using input device")

	return c, nil
}

func newCapture(buffer *Buffer, logger zerolog.Logger) *Capture {
	return &Capture{
		buffer: buffer,
		logger: logger,
	}
}

// onFrame runs on the audio device thread for every delivered frame
func (c *Capture) onFrame(in []float32) {
	c.buffer.Append(in)
}

// StartRecording clears the buffer and starts accumulating samples
func (c *Capture) StartRecording() {
	c.buffer.Start()
	c.logger.Debug().Msg("Recording started")
}

// StopRecording stops accumulating and returns the captured samples
func (c *Capture) StopRecording() []float32 {
	samples := c.buffer.Stop()
	c.logger.Debug().
		Int("samples", len(samples)).
		Dur("duration", Duration(len(samples))).
		Float64("rms", CalculateRMS(samples)).
		Msg("Recording stopped")
	return samples
}

// Source returns a read-only handle to the live sample buffer
func (c *Capture) Source() SampleSource {
	return c.buffer.Handle()
}

// Close stops the device stream and releases PortAudio
func (c *Capture) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.stream == nil {
			return
		}
		if stopErr := c.stream.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop input stream: %w", stopErr)
		}
		if closeErr := c.stream.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close input stream: %w", closeErr)
		}
		if termErr := portaudio.Terminate(); termErr != nil && err == nil {
			err = fmt.Errorf("failed to terminate PortAudio: %w", termErr)
		}
	})
	return err
}
