//go:build portaudio

// ABOUTME: PortAudio microphone capture
// ABOUTME: Opens a low-latency float32 input stream on the selected device
package capture

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/harperreed/singkeys/pkg/audio"
)

// PortAudio captures from a microphone through PortAudio
type PortAudio struct {
	errorSink

	config     Config
	stream     *portaudio.Stream
	deviceName string
	sampleRate int

	onSamples atomic.Pointer[func(samples []float32)]
	mu        sync.Mutex
}

// NewPortAudio initializes PortAudio and opens an input stream
func NewPortAudio(config Config) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	dev, err := portAudioDevice(config.Device)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	channels := config.Channels
	if dev.MaxInputChannels < channels {
		channels = dev.MaxInputChannels
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = channels
	params.FramesPerBuffer = config.BufferFrames
	if config.SampleRate > 0 {
		params.SampleRate = float64(config.SampleRate)
	} else {
		params.SampleRate = dev.DefaultSampleRate
	}

	p := &PortAudio{
		config:     config,
		deviceName: dev.Name,
		sampleRate: int(params.SampleRate),
	}

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		fn := p.onSamples.Load()
		if fn == nil {
			return
		}
		// PortAudio reuses in between callbacks
		samples := make([]float32, len(in))
		copy(samples, in)
		(*fn)(audio.Downmix(samples, channels))
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream on %q: %w", dev.Name, err)
	}
	p.stream = stream

	log.Printf("Using input device: %s", p.deviceName)
	log.Printf("Input stream config: %dHz, %d channel(s), F32, %d frames/buffer",
		p.sampleRate, channels, config.BufferFrames)

	return p, nil
}

// portAudioDevice picks a device by name substring, else the default input
func portAudioDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(name)) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("input device %q not found: %w", name, ErrNoInputDevice)
}

// Start implements Capture
func (p *PortAudio) Start(onSamples func(samples []float32)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return ErrNotOpen
	}
	p.onSamples.Store(&onSamples)
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	return nil
}

// Stop implements Capture
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	return nil
}

// Close implements Capture
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	p.onSamples.Store(nil)
	if err := p.stream.Close(); err != nil {
		log.Printf("Warning: portaudio stream close error: %v", err)
	}
	p.stream = nil
	return portaudio.Terminate()
}

// Format implements Capture
func (p *PortAudio) Format() audio.Format {
	return audio.Format{Codec: "pcm", SampleRate: p.sampleRate, Channels: 1, BitDepth: 32}
}

// Name implements Capture
func (p *PortAudio) Name() string {
	return "portaudio: " + p.deviceName
}
