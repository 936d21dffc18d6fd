// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts replayed audio to the analysis sample rate
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation over interleaved float32 frames and carries the
// last input frame across calls so chunk boundaries stay continuous.
//
// Example:
//
//	r := resample.New(48000, 44100, 1)
//	out := make([]float32, r.OutputSamplesNeeded(len(in)))
//	n := r.Resample(in, out)
package resample
