// ABOUTME: Ticker-driven analysis loop
// ABOUTME: Drains windows, estimates pitch, steps key state and injects presses
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/harperreed/singkeys/pkg/framebuf"
	"github.com/harperreed/singkeys/pkg/inject"
	"github.com/harperreed/singkeys/pkg/keymap"
	"github.com/harperreed/singkeys/pkg/keystate"
	"github.com/harperreed/singkeys/pkg/pitch"
)

// Event describes one processed window
type Event struct {
	Seq      uint64
	At       time.Time
	Estimate pitch.Estimate
	Detected bool
	Symbol   keymap.Symbol
	Action   keystate.Action
	Held     time.Duration
}

// Observer receives an Event per window. It runs on the loop goroutine
// and must not block.
type Observer interface {
	OnEvent(ev Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ev Event)

// OnEvent calls f
func (f ObserverFunc) OnEvent(ev Event) { f(ev) }

// Stats tracks loop metrics
type Stats struct {
	Windows    uint64
	Detections uint64
	Presses    uint64
	Repeats    uint64
	Releases   uint64
	Backlog    int
	Dropped    uint64
	Active     keymap.Symbol
}

// Loop is the single consumer of the frame buffer
type Loop struct {
	config    Config
	buffer    *framebuf.Buffer
	estimator pitch.Estimator
	injector  inject.Injector
	machine   *keystate.Machine
	observers []Observer
	now       func() time.Time

	seq         uint64
	lastDropped uint64

	statsMu sync.Mutex
	stats   Stats
}

// New creates an analysis loop
func New(config Config, buffer *framebuf.Buffer, estimator pitch.Estimator, injector inject.Injector) (*Loop, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if buffer == nil || estimator == nil || injector == nil {
		return nil, errors.New("pipeline requires a buffer, an estimator and an injector")
	}

	machine := keystate.New()
	machine.SetLogger(log.Printf, config.Debug)

	return &Loop{
		config:    config,
		buffer:    buffer,
		estimator: estimator,
		injector:  injector,
		machine:   machine,
		now:       time.Now,
	}, nil
}

// AddObserver registers an observer. Call before Run.
func (l *Loop) AddObserver(o Observer) {
	l.observers = append(l.observers, o)
}

// SetClock replaces the time source used to stamp windows
func (l *Loop) SetClock(now func() time.Time) {
	l.now = now
}

// Config returns the loop configuration
func (l *Loop) Config() Config {
	return l.config
}

// Run polls the buffer until ctx is cancelled or the injector fails
func (l *Loop) Run(ctx context.Context) error {
	log.Printf("Listening for pitch... (window %d samples / %v, poll %v)",
		l.config.WindowSize, l.config.WindowDuration(), l.config.PollInterval)

	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := l.Tick(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick processes every complete window currently queued
func (l *Loop) Tick() error {
	for {
		window, ok := l.buffer.Drain(l.config.WindowSize)
		if !ok {
			break
		}
		if _, err := l.Process(window); err != nil {
			return err
		}
	}

	backlog := l.buffer.Len()
	dropped := l.buffer.Dropped()
	if dropped > l.lastDropped {
		log.Printf("Warning: analysis fell behind, dropped %d samples (cap %d, %d total)",
			dropped-l.lastDropped, l.buffer.MaxSamples(), dropped)
		l.lastDropped = dropped
	}

	l.statsMu.Lock()
	l.stats.Backlog = backlog
	l.stats.Dropped = dropped
	l.statsMu.Unlock()

	return nil
}

// Process runs one window through estimation, classification, the state
// machine and the injector.
func (l *Loop) Process(window []float32) (Event, error) {
	now := l.now()
	l.seq++

	ev := Event{
		Seq: l.seq,
		At:  now,
	}

	est, ok := l.estimator.Estimate(window, l.config.SampleRate,
		l.config.PowerThreshold, l.config.ClarityThreshold)
	if ok {
		ev.Estimate = est
		ev.Detected = true
		ev.Symbol = keymap.Classify(est.Frequency)
		log.Printf("Detected pitch: %.2f Hz, clarity %.2f -> %s", est.Frequency, est.Clarity, ev.Symbol)
	} else if l.config.Debug {
		log.Printf("[DEBUG] No pitch detected in window %d", ev.Seq)
	}

	ev.Action = l.machine.Step(ev.Symbol, now)
	ev.Held = l.machine.State().HeldFor(now)

	if ev.Action.Injects() {
		if err := l.injector.Press(ev.Action.Symbol); err != nil {
			return ev, fmt.Errorf("pipeline: inject %s: %w", ev.Action, err)
		}
	}

	l.record(ev)

	for _, o := range l.observers {
		o.OnEvent(ev)
	}

	return ev, nil
}

func (l *Loop) record(ev Event) {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()

	l.stats.Windows++
	if ev.Detected {
		l.stats.Detections++
	}
	switch ev.Action.Kind {
	case keystate.KindPress:
		l.stats.Presses++
	case keystate.KindRepeat:
		l.stats.Repeats++
	case keystate.KindRelease:
		l.stats.Releases++
	}
	l.stats.Active = l.machine.State().Active
}

// Stats returns a snapshot of loop metrics. Safe to call from any goroutine.
func (l *Loop) Stats() Stats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}
