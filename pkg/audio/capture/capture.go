// ABOUTME: Capture interface, configuration and backend factory
// ABOUTME: Shared error reporting for stream runtime failures
package capture

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/harperreed/singkeys/pkg/audio"
)

var (
	// ErrNoInputDevice is returned when the host has no capture device
	ErrNoInputDevice = errors.New("no input device available")

	// ErrUnsupported is returned for backends not compiled into this binary
	ErrUnsupported = errors.New("capture backend not supported in this build")

	// ErrNotOpen is returned when starting a capture that was already closed
	ErrNotOpen = errors.New("capture not open")

	// ErrStreamStopped is reported when a device stops without being asked to
	ErrStreamStopped = errors.New("audio stream stopped unexpectedly")
)

// Backend names
const (
	BackendMalgo     = "malgo"
	BackendPortAudio = "portaudio"
	BackendFile      = "file"
	BackendTone      = "tone"
)

// DefaultTones is the schedule used by the tone backend when none is given
const DefaultTones = "LEFT:400ms,0:200ms,RIGHT:700ms,0:200ms,UP:300ms,DOWN:300ms,0:400ms,CONFIRM:500ms,0:600ms"

// Config holds capture configuration
type Config struct {
	Backend      string
	SampleRate   int    // 0 = device or file native rate
	Channels     int    // channels requested from the device before downmix
	BufferFrames int    // frames per callback batch
	Device       string // device name substring, empty = default device
	File         string // path for the file backend
	Tones        string // schedule for the tone backend
	Loop         bool   // restart file or tone schedule at the end
	Realtime     bool   // pace file and tone delivery to the wall clock
	Debug        bool
}

// DefaultConfig returns settings for the default microphone
func DefaultConfig() Config {
	return Config{
		Backend:      BackendMalgo,
		SampleRate:   44100,
		Channels:     1,
		BufferFrames: 512,
		Realtime:     true,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMalgo, BackendPortAudio, BackendTone:
	case BackendFile:
		if c.File == "" {
			return errors.New("file backend requires a file path")
		}
	default:
		return fmt.Errorf("unknown capture backend: %q", c.Backend)
	}

	if c.SampleRate < 0 {
		return fmt.Errorf("sample rate must not be negative, got %d", c.SampleRate)
	}
	if c.Channels < 1 || c.Channels > 8 {
		return fmt.Errorf("channels must be within [1, 8], got %d", c.Channels)
	}
	if c.BufferFrames <= 0 {
		return fmt.Errorf("buffer frames must be positive, got %d", c.BufferFrames)
	}
	return nil
}

// Capture produces mono float32 samples
type Capture interface {
	// Start begins delivering batches to onSamples
	Start(onSamples func(samples []float32)) error

	// Stop halts delivery; Start may not be called again
	Stop() error

	// Close stops and releases all resources
	Close() error

	// Format describes the delivered stream (always mono)
	Format() audio.Format

	// Name identifies the source for logs and the TUI
	Name() string

	// OnError registers the handler for stream runtime errors
	OnError(handler func(err error))
}

// New creates the configured backend
func New(config Config) (Capture, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture config: %w", err)
	}

	var c Capture
	var err error
	switch config.Backend {
	case BackendMalgo:
		c, err = asCapture(NewMalgo(config))
	case BackendPortAudio:
		c, err = asCapture(NewPortAudio(config))
	case BackendFile:
		c, err = asCapture(NewFile(config))
	case BackendTone:
		c, err = asCapture(NewTone(config))
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// asCapture keeps a failed constructor's typed nil out of the interface
func asCapture[T Capture](c T, err error) (Capture, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}

// errorSink logs stream runtime errors and forwards them to a handler
type errorSink struct {
	mu      sync.Mutex
	handler func(err error)
}

func (s *errorSink) OnError(handler func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

func (s *errorSink) report(err error) {
	log.Printf("Audio stream error: %v", err)
	s.notify(err)
}

// notify forwards err without logging
func (s *errorSink) notify(err error) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(err)
	}
}
