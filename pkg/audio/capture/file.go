// ABOUTME: Audio file capture source
// ABOUTME: Decodes, downmixes and resamples a file into mono batches
package capture

import (
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/harperreed/singkeys/pkg/audio"
	"github.com/harperreed/singkeys/pkg/audio/decode"
	"github.com/harperreed/singkeys/pkg/audio/resample"
)

// File plays an MP3, FLAC or WAV file into the pipeline as if it were a microphone
type File struct {
	pacedSource

	config     Config
	dec        decode.Decoder
	source     audio.Format
	sampleRate int
	resampler  *resample.Resampler
	produced   int // mono samples produced in the current pass
}

// NewFile opens config.File and prepares conversion to config.SampleRate
// (0 keeps the file's own rate).
func NewFile(config Config) (*File, error) {
	dec, err := decode.Open(config.File)
	if err != nil {
		return nil, err
	}

	source := dec.Format()
	if source.SampleRate <= 0 || source.Channels <= 0 {
		dec.Close()
		return nil, fmt.Errorf("invalid file format: %v", source)
	}

	rate := config.SampleRate
	if rate == 0 {
		rate = source.SampleRate
	}

	f := &File{
		config:     config,
		dec:        dec,
		source:     source,
		sampleRate: rate,
		resampler:  resample.New(source.SampleRate, rate, 1),
	}
	f.pacedSource = pacedSource{
		name:     f.Name(),
		rate:     rate,
		realtime: config.Realtime,
		next:     f.next,
	}

	if config.Debug {
		log.Printf("[DEBUG] Opened %s (%v), delivering %dHz mono", config.File, source, rate)
	}
	return f, nil
}

// next decodes one batch of frames
func (f *File) next() ([]float32, error) {
	channels := f.source.Channels
	raw := make([]float32, f.config.BufferFrames*channels)

	n, err := f.dec.Read(raw)
	n -= n % channels
	mono := audio.Downmix(raw[:n], channels)

	if !f.resampler.Passthrough() && len(mono) > 0 {
		out := make([]float32, f.resampler.OutputSamplesNeeded(len(mono)))
		mono = out[:f.resampler.Resample(mono, out)]
	}
	f.produced += len(mono)

	if errors.Is(err, io.EOF) && f.config.Loop {
		if f.produced == 0 {
			return mono, fmt.Errorf("%s: file has no samples: %w", f.config.File, io.EOF)
		}
		if rerr := f.rewind(); rerr != nil {
			return mono, rerr
		}
		return mono, nil
	}
	return mono, err
}

// rewind reopens the file for another pass
func (f *File) rewind() error {
	f.dec.Close()
	dec, err := decode.Open(f.config.File)
	if err != nil {
		return fmt.Errorf("failed to reopen %s: %w", f.config.File, err)
	}
	f.dec = dec
	f.resampler.Reset()
	f.produced = 0
	if f.config.Debug {
		log.Printf("[DEBUG] Looping %s", f.config.File)
	}
	return nil
}

// Start implements Capture
func (f *File) Start(onSamples func(samples []float32)) error {
	return f.start(onSamples)
}

// Stop implements Capture
func (f *File) Stop() error {
	return f.stop()
}

// Close implements Capture
func (f *File) Close() error {
	f.stop()
	return f.dec.Close()
}

// Format implements Capture
func (f *File) Format() audio.Format {
	return audio.Format{Codec: f.source.Codec, SampleRate: f.sampleRate, Channels: 1, BitDepth: 32}
}

// Name implements Capture
func (f *File) Name() string {
	return "file: " + filepath.Base(f.config.File)
}
