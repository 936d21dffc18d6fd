//go:build !portaudio

// ABOUTME: PortAudio capture stub when the library is not compiled in
// ABOUTME: Build with -tags portaudio to enable the real backend
package capture

import "github.com/harperreed/singkeys/pkg/audio"

// PortAudio capture (stub)
type PortAudio struct {
	errorSink
}

// NewPortAudio always fails in builds without the portaudio tag
func NewPortAudio(config Config) (*PortAudio, error) {
	return nil, ErrUnsupported
}

func (p *PortAudio) Start(onSamples func(samples []float32)) error { return ErrUnsupported }
func (p *PortAudio) Stop() error                                   { return nil }
func (p *PortAudio) Close() error                                  { return nil }
func (p *PortAudio) Format() audio.Format                          { return audio.Format{} }
func (p *PortAudio) Name() string                                  { return "portaudio (unavailable)" }
