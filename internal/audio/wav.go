package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM audio format tag
const wavFormatPCM = 1

// WriteWAV encodes float samples as a mono 16 kHz 16-bit PCM WAV stream.
// The quantization matches EncodePCM16.
func WriteWAV(w io.WriteSeeker, samples []float32) error {
	enc := wav.NewEncoder(w, SampleRate, BitDepth, Channels, wavFormatPCM)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: Channels,
			SampleRate:  SampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: BitDepth,
	}
	for i, s := range samples {
		buf.Data[i] = int(QuantizeSample(s))
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}
	return nil
}

// WriteTempWAV writes samples to a new temporary .wav file and returns its path.
// The caller is responsible for removing the file.
func WriteTempWAV(samples []float32) (string, error) {
	f, err := os.CreateTemp("", "justspeak-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create temp WAV file: %w", err)
	}
	path := f.Name()

	if err := WriteWAV(f, samples); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close temp WAV file: %w", err)
	}
	return path, nil
}
