package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// SampleRate is the fixed capture and wire sample rate (Hz)
	SampleRate = 16000

	// Channels is the fixed channel count (mono)
	Channels = 1

	// BitDepth is the bit depth of encoded PCM on the wire and in WAV files
	BitDepth = 16
)

// QuantizeSample converts a float amplitude to a 16-bit signed PCM value.
// The scaled value is truncated toward zero and clamped to the int16 range.
func QuantizeSample(sample float32) int16 {
	scaled := float64(sample) * 32767.0
	if math.IsNaN(scaled) {
		return 0
	}
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

// EncodePCM16 encodes float samples as little-endian 16-bit signed PCM
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(QuantizeSample(s)))
	}
	return out
}

// DecodePCM16 decodes little-endian 16-bit signed PCM into integer samples
func DecodePCM16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// Duration returns the playback duration of n samples at SampleRate
func Duration(n int) time.Duration {
	return time.Duration(n) * time.Second / SampleRate
}

// SamplesFor returns the number of samples covering d at SampleRate
func SamplesFor(d time.Duration) int {
	return int(d * SampleRate / time.Second)
}

// CalculateRMS calculates the root mean square level of float samples.
// Useful for logging input levels and spotting a muted microphone.
func CalculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}
