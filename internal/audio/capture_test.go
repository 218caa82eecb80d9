package audio

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestCapture_FramesGatedByRecording(t *testing.T) {
	c := newCapture(NewBuffer(), zerolog.Nop())
	src := c.Source()

	// Device frames before recording are dropped
	c.onFrame([]float32{0.1, 0.1})
	if src.Len() != 0 {
		t.Fatalf("Expected no samples before recording, got %d", src.Len())
	}

	c.StartRecording()
	c.onFrame([]float32{0.2, 0.2})
	c.onFrame([]float32{0.3})
	if src.Len() != 3 {
		t.Errorf("Expected 3 samples while recording, got %d", src.Len())
	}

	samples := c.StopRecording()
	if len(samples) != 3 {
		t.Errorf("Expected 3 samples from StopRecording, got %d", len(samples))
	}

	c.onFrame([]float32{0.4})
	if src.Len() != 0 {
		t.Errorf("Expected frames after stop to be dropped, got %d", src.Len())
	}
}

func TestCapture_CloseWithoutStream(t *testing.T) {
	c := newCapture(NewBuffer(), zerolog.Nop())
	if err := c.Close(); err != nil {
		t.Errorf("Expected nil error closing capture without a device, got %v", err)
	}
}
