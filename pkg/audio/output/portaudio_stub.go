//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"fmt"
)

var errNoPortAudio = fmt.Errorf("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Open always fails without the portaudio build tag
func (p *PortAudio) Open(sampleRate, channels int) error { return errNoPortAudio }

// Write always fails without the portaudio build tag
func (p *PortAudio) Write(samples []float32) error { return errNoPortAudio }

// SetVolume is a no-op
func (p *PortAudio) SetVolume(volume int) {}

// Close is a no-op
func (p *PortAudio) Close() error { return nil }
