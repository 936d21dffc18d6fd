// ABOUTME: Main singkeys application orchestration
// ABOUTME: Wires capture, the analysis loop, key injection, the event feed and TUI updates
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/harperreed/singkeys/internal/server"
	"github.com/harperreed/singkeys/internal/ui"
	"github.com/harperreed/singkeys/pkg/audio/capture"
	"github.com/harperreed/singkeys/pkg/framebuf"
	"github.com/harperreed/singkeys/pkg/inject"
	"github.com/harperreed/singkeys/pkg/keymap"
	"github.com/harperreed/singkeys/pkg/pipeline"
	"github.com/harperreed/singkeys/pkg/pitch"
	"golang.org/x/sync/errgroup"
)

// statusInterval is how often the TUI is refreshed
const statusInterval = 250 * time.Millisecond

// errEndOfInput stops the group when a finite source runs out
var errEndOfInput = errors.New("end of input")

// Config holds application configuration
type Config struct {
	Capture    capture.Config
	Pipeline   pipeline.Config
	MaxBacklog int // samples; 0 = unbounded
	DryRun     bool
	Serve      bool
	Server     server.Config
	Debug      bool
}

// DefaultConfig returns microphone capture, keyboard injection and no feed
func DefaultConfig() Config {
	return Config{
		Capture:  capture.DefaultConfig(),
		Pipeline: pipeline.DefaultConfig(),
		Server:   server.DefaultConfig(),
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.checkPitchRange(); err != nil {
		return err
	}
	if c.MaxBacklog < 0 {
		return fmt.Errorf("max backlog must not be negative, got %d", c.MaxBacklog)
	}
	if c.MaxBacklog > 0 && c.MaxBacklog < c.Pipeline.WindowSize {
		return fmt.Errorf("max backlog %d is smaller than one window (%d)", c.MaxBacklog, c.Pipeline.WindowSize)
	}
	if c.Serve {
		if err := c.Server.Validate(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	return nil
}

// checkPitchRange rejects windows too short for the estimator to reach
// the lowest key at the configured sample rate
func (c Config) checkPitchRange() error {
	maxLag := pitch.MaxLag(c.Pipeline.WindowSize, pipeline.DefaultPadding)
	lowest := float64(c.Pipeline.SampleRate) / float64(maxLag)
	if lowest >= keymap.MinFrequency() {
		return fmt.Errorf("window of %d samples at %dHz cannot detect pitches below %.0fHz; keys start at %.0fHz",
			c.Pipeline.WindowSize, c.Pipeline.SampleRate, lowest, keymap.MinFrequency())
	}
	return nil
}

// Options replace components built from Config
type Options struct {
	Capture      capture.Capture // nil = capture.New(config.Capture)
	Injector     inject.Injector // nil = keyboard, or dry-run with config.DryRun
	InjectorName string
	OnStatus     func(ui.StatusMsg) // TUI updates; nil disables them
}

// App runs the singing-to-keys pipeline
type App struct {
	config       Config
	capture      capture.Capture
	buffer       *framebuf.Buffer
	loop         *pipeline.Loop
	injectorName string
	feed         *server.Server
	onStatus     func(ui.StatusMsg)

	endOfInput chan struct{}
	eofOnce    sync.Once

	mu        sync.Mutex
	lastEvent pipeline.Event
	lastAct   string
}

// New builds every component. Environment failures (no microphone, no
// keyboard access) are returned wrapped.
func New(config Config, opts Options) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{
		config:     config,
		onStatus:   opts.OnStatus,
		endOfInput: make(chan struct{}),
	}

	a.capture = opts.Capture
	if a.capture == nil {
		c, err := capture.New(config.Capture)
		if err != nil {
			return nil, fmt.Errorf("failed to open audio input: %w", err)
		}
		a.capture = c
	}

	// The device may not honor the requested rate
	if rate := a.capture.Format().SampleRate; rate > 0 {
		config.Pipeline.SampleRate = rate
		if err := config.checkPitchRange(); err != nil {
			a.capture.Close()
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	injector, name, err := buildInjector(config, opts)
	if err != nil {
		a.capture.Close()
		return nil, err
	}
	a.injectorName = name

	a.buffer = framebuf.New(config.MaxBacklog)
	estimator := pitch.NewMcLeod(config.Pipeline.WindowSize, pipeline.DefaultPadding)

	loop, err := pipeline.New(config.Pipeline, a.buffer, estimator, injector)
	if err != nil {
		a.capture.Close()
		return nil, err
	}
	a.loop = loop
	a.loop.AddObserver(pipeline.ObserverFunc(a.recordEvent))

	if config.Serve {
		feedConfig := config.Server
		feedConfig.Debug = feedConfig.Debug || config.Debug
		feedConfig.WindowSize = config.Pipeline.WindowSize
		feedConfig.SampleRate = config.Pipeline.SampleRate
		a.feed = server.New(feedConfig)
		a.loop.AddObserver(a.feed)
	}

	a.config = config
	return a, nil
}

// buildInjector picks the injector. With Debug a real injector also logs
// every press through a dry-run injector.
func buildInjector(config Config, opts Options) (inject.Injector, string, error) {
	var injector inject.Injector
	var name string

	switch {
	case opts.Injector != nil:
		injector, name = opts.Injector, opts.InjectorName
		if name == "" {
			name = "custom"
		}
	case config.DryRun:
		return inject.NewDryRun(), "dry-run", nil
	default:
		kb, err := inject.NewKeyboard()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open keyboard injector: %w", err)
		}
		injector, name = kb, "keyboard"
	}

	if config.Debug {
		return inject.Multi{injector, inject.NewDryRun()}, name + "+log", nil
	}
	return injector, name, nil
}

// Run captures and analyzes until ctx is cancelled, a finite input ends,
// or a component fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.capture.OnError(a.handleStreamError)

	a.sendStatus(ui.StatusMsg{
		Source:     a.capture.Name(),
		SampleRate: a.config.Pipeline.SampleRate,
		WindowSize: a.config.Pipeline.WindowSize,
		Injector:   a.injectorName,
		FeedAddr:   a.feedAddr(),
	})

	if err := a.capture.Start(a.buffer.Push); err != nil {
		return fmt.Errorf("failed to start audio input: %w", err)
	}
	defer a.shutdownCapture()

	g.Go(func() error {
		return a.loop.Run(gctx)
	})

	if a.feed != nil {
		g.Go(func() error {
			return a.feed.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			a.feed.Stop()
			return nil
		})
	}

	g.Go(func() error {
		return a.drainOnEndOfInput(gctx)
	})

	if a.onStatus != nil {
		g.Go(func() error {
			a.statusLoop(gctx)
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, errEndOfInput) {
		log.Printf("Input finished, stopping")
		return nil
	}
	return err
}

// handleStreamError logs capture failures and forwards them to the TUI.
// io.EOF from a finite source triggers a clean stop.
func (a *App) handleStreamError(err error) {
	if errors.Is(err, io.EOF) {
		a.eofOnce.Do(func() { close(a.endOfInput) })
		return
	}
	a.sendStatus(ui.StatusMsg{Err: err})
}

// drainOnEndOfInput pads the last partial window with silence and appends
// one full silent window so a held key releases, then gives the loop time
// to consume them.
func (a *App) drainOnEndOfInput(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-a.endOfInput:
	}

	size := a.config.Pipeline.WindowSize
	log.Printf("Input finished after %v of audio",
		time.Duration(a.buffer.Pushed())*time.Second/time.Duration(a.config.Pipeline.SampleRate))
	a.buffer.Push(make([]float32, silencePadding(a.buffer.Len(), size)))

	timer := time.NewTimer(3 * a.config.Pipeline.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
	}
	return errEndOfInput
}

// silencePadding is the number of zeros that completes the queued partial
// window and then fills one more. Drains remove whole windows, so the
// remainder of backlog is stable while the loop keeps running.
func silencePadding(backlog, size int) int {
	return (size-backlog%size)%size + size
}

func (a *App) shutdownCapture() {
	if err := a.capture.Stop(); err != nil {
		log.Printf("Error stopping audio input: %v", err)
	}
	if err := a.capture.Close(); err != nil {
		log.Printf("Error closing audio input: %v", err)
	}
}

// recordEvent keeps the newest event for the status loop
func (a *App) recordEvent(ev pipeline.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastEvent = ev
	if ev.Action.Emitted() {
		a.lastAct = ev.Action.String()
	}
}

// statusLoop periodically sends loop state to the TUI
func (a *App) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sendStatus(a.Status())
		}
	}
}

// Status snapshots the current pitch, counters and feed clients
func (a *App) Status() ui.StatusMsg {
	a.mu.Lock()
	ev := a.lastEvent
	lastAct := a.lastAct
	a.mu.Unlock()

	stats := a.loop.Stats()
	status := ui.StatusMsg{
		Pitch: &ui.PitchStatus{
			Frequency:  ev.Estimate.Frequency,
			Clarity:    ev.Estimate.Clarity,
			Detected:   ev.Detected,
			Heard:      ev.Symbol,
			Active:     stats.Active,
			Held:       ev.Held,
			LastAction: lastAct,
		},
		Stats: &stats,
	}
	if stats.Active == keymap.None {
		status.Pitch.Held = 0
	}
	if a.feed != nil {
		names := a.feed.ClientNames()
		sort.Strings(names)
		clients := len(names)
		status.Clients = &clients
		status.ClientNames = names
	}
	return status
}

// Stats returns the analysis loop counters
func (a *App) Stats() pipeline.Stats {
	return a.loop.Stats()
}

// Feed returns the event feed server, or nil when not serving
func (a *App) Feed() *server.Server {
	return a.feed
}

func (a *App) feedAddr() string {
	if a.feed == nil {
		return ""
	}
	return fmt.Sprintf(":%d", a.config.Server.Port)
}

func (a *App) sendStatus(msg ui.StatusMsg) {
	if a.onStatus != nil {
		a.onStatus(msg)
	}
}
