// ABOUTME: Audio type definitions
// ABOUTME: Defines capture formats and float/integer sample conversions
package audio

import "fmt"

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes a PCM stream
type Format struct {
	Codec      string // "pcm", "mp3", "flac", "wav", "tone"
	SampleRate int
	Channels   int
	BitDepth   int
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch %d-bit", f.Codec, f.SampleRate, f.Channels, f.BitDepth)
}

// Int16ToFloat converts a 16-bit sample to [-1, 1)
func Int16ToFloat(sample int16) float32 {
	return float32(sample) / 32768.0
}

// FloatToInt16 converts a float sample to 16-bit, clipping out-of-range values
func FloatToInt16(sample float32) int16 {
	if sample >= 1 {
		return 32767
	}
	if sample <= -1 {
		return -32768
	}
	return int16(sample * 32768.0)
}

// IntToFloat converts a signed integer sample of the given bit depth to [-1, 1)
func IntToFloat(sample int, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		return 0
	}
	scale := float64(int64(1) << (bitDepth - 1))
	return float32(float64(sample) / scale)
}

// Downmix averages interleaved frames down to mono. Mono input is returned as is.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
