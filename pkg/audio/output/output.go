// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for playback backends plus volume helpers
package output

import "errors"

// ErrNotOpen is returned by Write before Open succeeds
var ErrNotOpen = errors.New("output not initialized")

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// Write outputs interleaved samples in [-1, 1] (blocks until written)
	Write(samples []float32) error

	// Close releases output resources
	Close() error
}

// applyVolume scales samples by volume (0-100), clipping to [-1, 1]
func applyVolume(samples []float32, volume int, muted bool) []float32 {
	multiplier := float32(getVolumeMultiplier(volume, muted))

	result := make([]float32, len(samples))
	for i, sample := range samples {
		scaled := sample * multiplier
		if scaled > 1 {
			scaled = 1
		} else if scaled < -1 {
			scaled = -1
		}
		result[i] = scaled
	}
	return result
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}

func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}
