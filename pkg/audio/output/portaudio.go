//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Blocking float32 playback through the default output device
package output

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudio output implementation
type PortAudio struct {
	stream   *portaudio.Stream
	buffer   []float32
	channels int
	volume   int
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() *PortAudio {
	return &PortAudio{volume: 100}
}

// Open initializes PortAudio with a blocking write stream
func (p *PortAudio) Open(sampleRate, channels int) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	p.channels = channels
	p.buffer = make([]float32, 512*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), 512, &p.buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	p.stream = stream
	return stream.Start()
}

// Write outputs audio samples, zero-padding the final partial buffer
func (p *PortAudio) Write(samples []float32) error {
	if p.stream == nil {
		return ErrNotOpen
	}

	scaled := applyVolume(samples, p.volume, false)
	for len(scaled) > 0 {
		n := copy(p.buffer, scaled)
		for i := n; i < len(p.buffer); i++ {
			p.buffer[i] = 0
		}
		scaled = scaled[n:]
		if err := p.stream.Write(); err != nil {
			return fmt.Errorf("portaudio write failed: %w", err)
		}
	}
	return nil
}

// SetVolume sets the volume (0-100)
func (p *PortAudio) SetVolume(volume int) {
	p.volume = clampVolume(volume)
}

// Close releases resources
func (p *PortAudio) Close() error {
	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			return err
		}
		if err := p.stream.Close(); err != nil {
			return err
		}
		p.stream = nil
	}
	return portaudio.Terminate()
}
