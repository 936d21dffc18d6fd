// ABOUTME: Pitch estimation package for monophonic audio windows
// ABOUTME: Provides the Estimator interface and a McLeod (NSDF) implementation
// Package pitch estimates the fundamental frequency of an analysis window.
//
// The McLeod estimator computes the normalised square difference function
// with an FFT autocorrelation, picks the first key maximum above the
// clarity threshold and refines it with parabolic interpolation. Windows
// whose power is below the power threshold report no pitch.
//
// Example:
//
//	est := pitch.NewMcLeod(2048, 1024)
//	if p, ok := est.Estimate(window, 44100, 0.7, 0.2); ok {
//	    log.Printf("%.1f Hz (clarity %.2f)", p.Frequency, p.Clarity)
//	}
package pitch
