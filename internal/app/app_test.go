// ABOUTME: Tests for application orchestration
// ABOUTME: Runs the full pipeline on synthetic tone input with a recording injector
package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/singkeys/internal/ui"
	"github.com/harperreed/singkeys/pkg/audio/capture"
	"github.com/harperreed/singkeys/pkg/inject"
	"github.com/harperreed/singkeys/pkg/keymap"
)

// 8192 Hz makes each 500ms segment exactly two 2048-sample windows
const testRate = 8192

func toneConfig(schedule string) Config {
	config := DefaultConfig()
	config.Capture.Backend = capture.BackendTone
	config.Capture.SampleRate = testRate
	config.Capture.Tones = schedule
	config.Capture.Realtime = false
	config.Pipeline.SampleRate = testRate
	config.Pipeline.PollInterval = 10 * time.Millisecond
	return config
}

func newToneApp(t *testing.T, config Config, injector inject.Injector, onStatus func(ui.StatusMsg)) *App {
	t.Helper()
	tone, err := capture.NewTone(config.Capture)
	if err != nil {
		t.Fatalf("NewTone: %v", err)
	}
	a, err := New(config, Options{
		Capture:      tone,
		Injector:     injector,
		InjectorName: "recorder",
		OnStatus:     onStatus,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

type statusLog struct {
	mu   sync.Mutex
	msgs []ui.StatusMsg
}

func (s *statusLog) add(msg ui.StatusMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *statusLog) all() []ui.StatusMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ui.StatusMsg(nil), s.msgs...)
}

func TestRunToneScheduleToKeys(t *testing.T) {
	recorder := inject.NewRecorder()
	statuses := &statusLog{}
	a := newToneApp(t, toneConfig("LEFT:500ms,0:500ms,RIGHT:500ms"), recorder, statuses.add)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run should stop on its own at end of input")
	}

	presses := recorder.Presses()
	expected := []keymap.Symbol{keymap.Left, keymap.Right}
	if len(presses) != len(expected) {
		t.Fatalf("expected presses %v, got %v", expected, presses)
	}
	for i := range expected {
		if presses[i] != expected[i] {
			t.Errorf("press %d: expected %s, got %s", i, expected[i], presses[i])
		}
	}

	stats := a.Stats()
	if stats.Windows != 7 {
		t.Errorf("expected 7 windows (6 of tone, 1 of trailing silence), got %d", stats.Windows)
	}
	if stats.Presses != 2 || stats.Releases != 2 {
		t.Errorf("expected 2 presses and 2 releases, got %+v", stats)
	}
	if stats.Active != keymap.None {
		t.Errorf("expected no held key after input ends, got %s", stats.Active)
	}

	msgs := statuses.all()
	if len(msgs) == 0 {
		t.Fatal("expected an initial status message")
	}
	first := msgs[0]
	if first.Source != "tone: 3 segments" || first.Injector != "recorder" {
		t.Errorf("unexpected initial status: %+v", first)
	}
	if first.SampleRate != testRate || first.WindowSize != 2048 {
		t.Errorf("expected 2048 @ %d, got %d @ %d", testRate, first.WindowSize, first.SampleRate)
	}
}

func TestRunReleasesAfterMisalignedInput(t *testing.T) {
	// Neither length is a whole number of 2048-sample windows at 8192 Hz
	for _, schedule := range []string{"LEFT:350ms", "LEFT:450ms"} {
		t.Run(schedule, func(t *testing.T) {
			recorder := inject.NewRecorder()
			a := newToneApp(t, toneConfig(schedule), recorder, nil)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := a.Run(ctx); err != nil {
				t.Fatalf("Run: %v", err)
			}

			presses := recorder.Presses()
			if len(presses) == 0 || presses[0] != keymap.Left {
				t.Fatalf("expected LEFT pressed first, got %v", presses)
			}

			stats := a.Stats()
			if stats.Windows != 3 {
				t.Errorf("expected 3 windows (1 of tone, 1 padded, 1 of silence), got %d", stats.Windows)
			}
			if stats.Releases != 1 {
				t.Errorf("expected the held key to release, got %+v", stats)
			}
			if stats.Active != keymap.None {
				t.Errorf("expected no held key after input ends, got %s", stats.Active)
			}
		})
	}
}

func TestSilencePadding(t *testing.T) {
	tests := []struct {
		backlog  int
		expected int
	}{
		{0, 2048},
		{819, 1229 + 2048},
		{2047, 1 + 2048},
		{2048, 2048},
		{4096 + 10, 2038 + 2048},
	}

	for _, tt := range tests {
		if got := silencePadding(tt.backlog, 2048); got != tt.expected {
			t.Errorf("silencePadding(%d): expected %d, got %d", tt.backlog, tt.expected, got)
		}
	}
}

func TestDebugLogsPresses(t *testing.T) {
	config := toneConfig("UP:500ms")
	config.Debug = true

	recorder := inject.NewRecorder()
	statuses := &statusLog{}
	a := newToneApp(t, config, recorder, statuses.add)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if presses := recorder.Presses(); len(presses) == 0 || presses[0] != keymap.Up {
		t.Errorf("expected UP to reach the injector, got %v", presses)
	}
	msgs := statuses.all()
	if len(msgs) == 0 || msgs[0].Injector != "recorder+log" {
		t.Errorf("expected injector recorder+log, got %+v", msgs)
	}
}

func TestNewRejectsShortWindowAtCaptureRate(t *testing.T) {
	// Valid at 8192 Hz, too short once the capture reports 44100 Hz
	config := toneConfig("UP:500ms")
	config.Capture.SampleRate = 44100
	config.Pipeline.WindowSize = 512

	tone, err := capture.NewTone(config.Capture)
	if err != nil {
		t.Fatalf("NewTone: %v", err)
	}

	if _, err := New(config, Options{Capture: tone, Injector: inject.NewRecorder()}); err == nil {
		t.Fatal("expected error for a window that cannot reach the lowest key")
	}
}

func TestRunStopsOnInjectorError(t *testing.T) {
	recorder := inject.NewRecorder()
	boom := errors.New("uinput gone")
	recorder.FailWith(boom)

	a := newToneApp(t, toneConfig("UP:500ms"), recorder, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.Run(ctx)
	if !errors.Is(err, boom) {
		t.Errorf("expected injector error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	config := toneConfig("UP:500ms")
	config.Capture.Loop = true
	config.Capture.Realtime = true
	config.Capture.SampleRate = 44100
	config.Pipeline.SampleRate = 44100

	a := newToneApp(t, config, inject.NewRecorder(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on cancel, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSampleRateFollowsCapture(t *testing.T) {
	config := toneConfig("UP:500ms")
	config.Pipeline.SampleRate = 44100

	a := newToneApp(t, config, inject.NewRecorder(), nil)
	if a.config.Pipeline.SampleRate != testRate {
		t.Errorf("expected pipeline rate %d from capture, got %d", testRate, a.config.Pipeline.SampleRate)
	}
}

func TestStreamErrorsReachStatus(t *testing.T) {
	statuses := &statusLog{}
	a := newToneApp(t, toneConfig("UP:500ms"), inject.NewRecorder(), statuses.add)

	a.handleStreamError(capture.ErrStreamStopped)

	msgs := statuses.all()
	if len(msgs) != 1 || !errors.Is(msgs[0].Err, capture.ErrStreamStopped) {
		t.Errorf("expected stream error in status, got %+v", msgs)
	}
}

func TestStatusSnapshot(t *testing.T) {
	config := toneConfig("UP:500ms")
	config.Serve = true
	config.Server.EnableMDNS = false

	a := newToneApp(t, config, inject.NewRecorder(), nil)
	if a.Feed() == nil {
		t.Fatal("expected feed server when serving")
	}

	status := a.Status()
	if status.Pitch == nil || status.Stats == nil {
		t.Fatal("expected pitch and stats in snapshot")
	}
	if status.Clients == nil || *status.Clients != 0 {
		t.Errorf("expected 0 feed clients, got %v", status.Clients)
	}
	if len(status.ClientNames) != 0 {
		t.Errorf("expected no client names, got %v", status.ClientNames)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"bad capture", func(c *Config) { c.Capture.Backend = "cassette" }, true},
		{"bad pipeline", func(c *Config) { c.Pipeline.WindowSize = 0 }, true},
		{"negative backlog", func(c *Config) { c.MaxBacklog = -1 }, true},
		{"backlog below window", func(c *Config) { c.MaxBacklog = 1000 }, true},
		{"backlog of several windows", func(c *Config) { c.MaxBacklog = 44100 }, false},
		{"window too short for the lowest key", func(c *Config) { c.Pipeline.WindowSize = 512 }, true},
		{"short window at a low rate", func(c *Config) {
			c.Pipeline.WindowSize = 512
			c.Pipeline.SampleRate = 8192
		}, false},
		{"bad server ignored when not serving", func(c *Config) { c.Server.Name = "" }, false},
		{"bad server when serving", func(c *Config) { c.Serve = true; c.Server.Name = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}
