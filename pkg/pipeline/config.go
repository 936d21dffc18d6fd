// ABOUTME: Analysis loop configuration
// ABOUTME: Window size, estimator thresholds and poll interval with validation
package pipeline

import (
	"fmt"
	"time"
)

const (
	DefaultWindowSize       = 2048
	DefaultPadding          = 1024
	DefaultSampleRate       = 44100
	DefaultPowerThreshold   = 0.7
	DefaultClarityThreshold = 0.2
	DefaultPollInterval     = 50 * time.Millisecond
)

// Config holds analysis loop configuration
type Config struct {
	WindowSize       int
	SampleRate       int
	PowerThreshold   float64
	ClarityThreshold float64
	PollInterval     time.Duration
	Debug            bool
}

// DefaultConfig returns the standard loop settings
func DefaultConfig() Config {
	return Config{
		WindowSize:       DefaultWindowSize,
		SampleRate:       DefaultSampleRate,
		PowerThreshold:   DefaultPowerThreshold,
		ClarityThreshold: DefaultClarityThreshold,
		PollInterval:     DefaultPollInterval,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", c.WindowSize)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.PowerThreshold < 0 {
		return fmt.Errorf("power threshold must not be negative, got %v", c.PowerThreshold)
	}
	if c.ClarityThreshold < 0 || c.ClarityThreshold > 1 {
		return fmt.Errorf("clarity threshold must be within [0, 1], got %v", c.ClarityThreshold)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	return nil
}

// WindowDuration is the audio time covered by one window
func (c Config) WindowDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.WindowSize) * time.Second / time.Duration(c.SampleRate)
}
