// ABOUTME: Malgo-based microphone capture
// ABOUTME: Uses miniaudio via malgo to deliver F32 input frames
package capture

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/harperreed/singkeys/pkg/audio"
)

// Malgo captures from a microphone through miniaudio
type Malgo struct {
	errorSink

	config     Config
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	deviceName string
	sampleRate int

	onSamples atomic.Pointer[func(samples []float32)]
	stopping  atomic.Bool
	mu        sync.Mutex
}

// NewMalgo opens the miniaudio context and selects an input device.
// Returns ErrNoInputDevice when the host has none.
func NewMalgo(config Config) (*Malgo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		if config.Debug {
			log.Printf("[DEBUG] malgo: %s", strings.TrimSpace(message))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	m := &Malgo{
		config:   config,
		malgoCtx: ctx,
	}

	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		m.freeContext()
		return nil, fmt.Errorf("failed to query input devices: %w", err)
	}
	if len(devices) == 0 {
		m.freeContext()
		return nil, ErrNoInputDevice
	}

	info, err := selectDevice(devices, config.Device)
	if err != nil {
		m.freeContext()
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(config.Channels)
	deviceConfig.Capture.DeviceID = info.ID.Pointer()
	deviceConfig.SampleRate = uint32(config.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(config.BufferFrames)
	deviceConfig.Alsa.NoMMap = 1

	m.deviceName = info.Name()

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: m.dataCallback,
		Stop: m.stopCallback,
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		m.freeContext()
		return nil, fmt.Errorf("failed to initialize capture device %q: %w", m.deviceName, err)
	}

	m.device = device
	m.sampleRate = int(device.SampleRate())

	log.Printf("Using input device: %s", m.deviceName)
	log.Printf("Input stream config: %dHz, %d channel(s), F32, %d frames/period",
		m.sampleRate, config.Channels, config.BufferFrames)

	return m, nil
}

// selectDevice picks a device by name substring, else the system default, else the first
func selectDevice(devices []malgo.DeviceInfo, name string) (malgo.DeviceInfo, error) {
	if name != "" {
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Name()), strings.ToLower(name)) {
				return d, nil
			}
		}
		return malgo.DeviceInfo{}, fmt.Errorf("input device %q not found: %w", name, ErrNoInputDevice)
	}

	for _, d := range devices {
		if d.IsDefault != 0 {
			return d, nil
		}
	}
	return devices[0], nil
}

// Start implements Capture
func (m *Malgo) Start(onSamples func(samples []float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotOpen
	}

	m.onSamples.Store(&onSamples)
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

// dataCallback is called by malgo with interleaved F32 input frames
func (m *Malgo) dataCallback(pOutputSamples, pInputSamples []byte, frameCount uint32) {
	fn := m.onSamples.Load()
	if fn == nil {
		return
	}

	channels := m.config.Channels
	total := int(frameCount) * channels
	if len(pInputSamples) < total*4 {
		total = len(pInputSamples) / 4
	}

	samples := make([]float32, total)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(pInputSamples[i*4:]))
	}

	(*fn)(audio.Downmix(samples, channels))
}

// stopCallback fires whenever the device stops, requested or not
func (m *Malgo) stopCallback() {
	if !m.stopping.Load() {
		m.report(fmt.Errorf("%s: %w", m.deviceName, ErrStreamStopped))
	}
}

// Stop implements Capture
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopping.Store(true)
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			return fmt.Errorf("failed to stop capture device: %w", err)
		}
	}
	return nil
}

// Close implements Capture
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopping.Store(true)
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	m.freeContext()
	return nil
}

// freeContext releases the miniaudio context
func (m *Malgo) freeContext() {
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
}

// Format implements Capture
func (m *Malgo) Format() audio.Format {
	return audio.Format{Codec: "pcm", SampleRate: m.sampleRate, Channels: 1, BitDepth: 32}
}

// Name implements Capture
func (m *Malgo) Name() string {
	return "mic: " + m.deviceName
}
