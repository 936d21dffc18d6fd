// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Used to bring decoded files to the analysis rate using linear interpolation
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64   // fractional read position, relative to lastFrame
	lastFrame  []float32 // final frame of the previous chunk, one sample per channel
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	if channels < 1 {
		channels = 1
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]float32, channels),
	}
}

// Passthrough reports whether input and output rates match
func (r *Resampler) Passthrough() bool {
	return r.inputRate == r.outputRate
}

// Resample converts input samples to the output rate and returns the
// number of samples written to output.
// input: interleaved samples at inputRate
// output: interleaved samples at outputRate
func (r *Resampler) Resample(input []float32, output []float32) int {
	if len(input) == 0 {
		return 0
	}
	if r.Passthrough() {
		return copy(output, input)
	}

	inputFrames := len(input) / r.channels
	outputFrames := len(output) / r.channels

	// Frame k of the virtual stream is lastFrame for k == 0 and
	// input[k-1] afterwards; an unprimed resampler starts at input[0].
	frame := func(k, ch int) float32 {
		if !r.primed {
			return input[k*r.channels+ch]
		}
		if k == 0 {
			return r.lastFrame[ch]
		}
		return input[(k-1)*r.channels+ch]
	}
	available := inputFrames
	if r.primed {
		available++
	}

	outIdx := 0
	for outIdx < outputFrames {
		idx := int(r.position)

		// Need idx and idx+1
		if idx >= available-1 {
			break
		}

		frac := float32(r.position - float64(idx))
		for ch := 0; ch < r.channels; ch++ {
			s1 := frame(idx, ch)
			s2 := frame(idx+1, ch)
			output[outIdx*r.channels+ch] = s1*(1-frac) + s2*frac
		}

		outIdx++
		r.position += r.ratio
	}

	// Rebase so the last input frame becomes virtual frame 0
	r.position -= float64(available - 1)
	if r.position < 0 {
		r.position = 0
	}
	copy(r.lastFrame, input[(inputFrames-1)*r.channels:inputFrames*r.channels])
	r.primed = true

	return outIdx * r.channels
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	r.primed = false
	for i := range r.lastFrame {
		r.lastFrame[i] = 0
	}
}

// OutputSamplesNeeded calculates a buffer size large enough for the output of inputSamples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames+1)/r.ratio) + 1
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}
