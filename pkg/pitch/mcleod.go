// ABOUTME: McLeod pitch method using go-dsp FFT autocorrelation
// ABOUTME: NSDF key-maximum picking with parabolic peak refinement
package pitch

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// McLeod estimates pitch with the McLeod Pitch Method. It reuses its
// buffers between calls and is not safe for concurrent use.
type McLeod struct {
	size    int
	padding int
	fftSize int
	signal  []float64
	padded  []float64
	nsdf    []float64
}

// NewMcLeod creates an estimator for windows of size samples. padding
// bounds the longest lag examined, which sets the lowest detectable
// frequency to sampleRate/padding.
func NewMcLeod(size, padding int) *McLeod {
	m := &McLeod{}
	m.resize(size, padding)
	return m
}

// MaxLag is the longest lag, in samples, a McLeod estimator built with
// size and padding examines. The lowest frequency it can report is
// sampleRate/MaxLag.
func MaxLag(size, padding int) int {
	if padding <= 0 || padding > size {
		return size / 2
	}
	return padding
}

func (m *McLeod) resize(size, padding int) {
	padding = MaxLag(size, padding)
	m.size = size
	m.padding = padding
	m.fftSize = nextPowerOfTwo(size + padding)
	m.signal = make([]float64, size)
	m.padded = make([]float64, m.fftSize)
	m.nsdf = make([]float64, padding)
}

// Estimate implements Estimator
func (m *McLeod) Estimate(window []float32, sampleRate int, powerThreshold, clarityThreshold float64) (Estimate, bool) {
	if len(window) < 4 || sampleRate <= 0 {
		return Estimate{}, false
	}
	if len(window) != m.size {
		m.resize(len(window), m.padding)
	}

	if Power(window) < powerThreshold {
		return Estimate{}, false
	}

	for i, s := range window {
		m.signal[i] = float64(s)
	}
	nsdf := m.normalizedSquareDifference()

	peak, ok := firstKeyMaximum(nsdf, clarityThreshold)
	if !ok {
		return Estimate{}, false
	}

	tau, clarity := refinePeak(nsdf, peak)
	if tau <= 0 {
		return Estimate{}, false
	}

	return Estimate{
		Frequency: float64(sampleRate) / tau,
		Clarity:   clamp01(clarity),
	}, true
}

// normalizedSquareDifference fills m.nsdf with n'(tau) = 2r(tau)/m(tau)
func (m *McLeod) normalizedSquareDifference() []float64 {
	x := m.signal
	n := len(x)

	copy(m.padded, x)
	for i := n; i < len(m.padded); i++ {
		m.padded[i] = 0
	}

	// Autocorrelation via power spectrum
	spectrum := fft.FFTReal(m.padded)
	for i, c := range spectrum {
		re, im := real(c), imag(c)
		spectrum[i] = complex(re*re+im*im, 0)
	}
	acf := fft.IFFT(spectrum)

	var energy float64
	for _, v := range x {
		energy += v * v
	}

	// m(tau) = sum of x[j]^2 + x[j+tau]^2 over the overlap
	msum := 2 * energy
	for tau := range m.nsdf {
		if tau > 0 {
			msum -= x[tau-1]*x[tau-1] + x[n-tau]*x[n-tau]
		}
		if msum > 1e-12 {
			m.nsdf[tau] = 2 * real(acf[tau]) / msum
		} else {
			m.nsdf[tau] = 0
		}
	}

	return m.nsdf
}

// firstKeyMaximum returns the lag of the highest point of the first
// positive lobe (after the initial negative crossing) whose value exceeds
// threshold.
func firstKeyMaximum(nsdf []float64, threshold float64) (int, bool) {
	pos := 0
	for pos < len(nsdf) && nsdf[pos] > 0 {
		pos++
	}

	for pos < len(nsdf) {
		for pos < len(nsdf) && nsdf[pos] <= 0 {
			pos++
		}

		best := -1
		for pos < len(nsdf) && nsdf[pos] > 0 {
			if best < 0 || nsdf[pos] > nsdf[best] {
				best = pos
			}
			pos++
		}

		if best > 0 && nsdf[best] > threshold {
			return best, true
		}
	}

	return 0, false
}

// refinePeak interpolates a parabola through the peak and its neighbours
func refinePeak(nsdf []float64, i int) (float64, float64) {
	if i <= 0 || i >= len(nsdf)-1 {
		return float64(i), nsdf[i]
	}

	a, b, c := nsdf[i-1], nsdf[i], nsdf[i+1]
	denom := a - 2*b + c
	if denom == 0 {
		return float64(i), b
	}

	delta := 0.5 * (a - c) / denom
	return float64(i) + delta, b - 0.25*(a-c)*delta
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
