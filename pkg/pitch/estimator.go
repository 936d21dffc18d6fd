// ABOUTME: Pitch estimator interface and function adapter
// ABOUTME: Estimate carries a detected frequency and its clarity
package pitch

import "fmt"

// Estimate is a detected fundamental
type Estimate struct {
	Frequency float64 // Hz, > 0
	Clarity   float64 // 0..1
}

func (e Estimate) String() string {
	return fmt.Sprintf("%.2f Hz (clarity %.2f)", e.Frequency, e.Clarity)
}

// Estimator reports the pitch of a window, or false when there is none.
// A missing pitch is the normal silence signal, not an error.
type Estimator interface {
	Estimate(window []float32, sampleRate int, powerThreshold, clarityThreshold float64) (Estimate, bool)
}

// EstimatorFunc adapts a function to the Estimator interface
type EstimatorFunc func(window []float32, sampleRate int, powerThreshold, clarityThreshold float64) (Estimate, bool)

// Estimate calls f
func (f EstimatorFunc) Estimate(window []float32, sampleRate int, powerThreshold, clarityThreshold float64) (Estimate, bool) {
	return f(window, sampleRate, powerThreshold, clarityThreshold)
}

// Power returns the sum of squared samples
func Power(window []float32) float64 {
	var p float64
	for _, s := range window {
		v := float64(s)
		p += v * v
	}
	return p
}
