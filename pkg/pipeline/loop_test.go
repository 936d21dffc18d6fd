// ABOUTME: Tests for the analysis loop
// ABOUTME: Drives the loop with scripted estimators, a fake clock and a recording injector
package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/singkeys/pkg/framebuf"
	"github.com/harperreed/singkeys/pkg/inject"
	"github.com/harperreed/singkeys/pkg/keymap"
	"github.com/harperreed/singkeys/pkg/keystate"
	"github.com/harperreed/singkeys/pkg/pitch"
)

// script returns one canned estimate per call; nil entries mean no pitch
type script struct {
	mu    sync.Mutex
	steps []*pitch.Estimate
	calls int
}

func (s *script) Estimate(window []float32, sampleRate int, power, clarity float64) (pitch.Estimate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.steps) || s.steps[i] == nil {
		return pitch.Estimate{}, false
	}
	return *s.steps[i], true
}

func repeatEstimate(freq float64, n int) []*pitch.Estimate {
	out := make([]*pitch.Estimate, n)
	for i := range out {
		out[i] = &pitch.Estimate{Frequency: freq, Clarity: 0.9}
	}
	return out
}

// fakeClock advances by step on every read
func fakeClock(step time.Duration) func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := true
	return func() time.Time {
		if first {
			first = false
			return t
		}
		t = t.Add(step)
		return t
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WindowSize = 64
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

func newTestLoop(t *testing.T, est pitch.Estimator, buf *framebuf.Buffer) (*Loop, *inject.Recorder, *[]Event) {
	t.Helper()
	rec := inject.NewRecorder()
	loop, err := New(testConfig(), buf, est, rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	loop.SetClock(fakeClock(50 * time.Millisecond))

	var events []Event
	loop.AddObserver(ObserverFunc(func(ev Event) {
		events = append(events, ev)
	}))
	return loop, rec, &events
}

func pushWindows(buf *framebuf.Buffer, n, size int) {
	for i := 0; i < n; i++ {
		buf.Push(make([]float32, size))
	}
}

func TestEndToEndPressRelease(t *testing.T) {
	est := &script{steps: append(repeatEstimate(120, 5), nil)}
	buf := framebuf.New(0)
	loop, rec, events := newTestLoop(t, est, buf)

	pushWindows(buf, 6, 64)
	if err := loop.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if len(*events) != 6 {
		t.Fatalf("expected 6 events, got %d", len(*events))
	}

	var kinds []keystate.Kind
	for _, ev := range *events {
		if ev.Action.Emitted() {
			if ev.Action.Symbol != keymap.Left {
				t.Errorf("expected LEFT, got %s", ev.Action.Symbol)
			}
			kinds = append(kinds, ev.Action.Kind)
		}
	}

	if len(kinds) < 2 || kinds[0] != keystate.KindPress || kinds[len(kinds)-1] != keystate.KindRelease {
		t.Fatalf("expected press ... release, got %v", kinds)
	}
	for _, k := range kinds[1 : len(kinds)-1] {
		if k != keystate.KindRepeat {
			t.Errorf("expected only repeats between press and release, got %v", kinds)
		}
	}

	// Release is not a keystroke
	presses := rec.Presses()
	if len(presses) != len(kinds)-1 {
		t.Errorf("expected %d injected presses, got %d", len(kinds)-1, len(presses))
	}

	stats := loop.Stats()
	if stats.Windows != 6 || stats.Detections != 5 || stats.Presses != 1 || stats.Releases != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Active != keymap.None {
		t.Errorf("expected idle after release, got %s", stats.Active)
	}
}

func TestSustainedPitchRepeats(t *testing.T) {
	// 12 windows 50ms apart: press at 0, repeats at 250, 350, 450, 550
	est := &script{steps: repeatEstimate(150, 12)}
	buf := framebuf.New(0)
	loop, rec, _ := newTestLoop(t, est, buf)

	pushWindows(buf, 12, 64)
	if err := loop.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	stats := loop.Stats()
	if stats.Presses != 1 || stats.Repeats != 4 {
		t.Errorf("expected 1 press and 4 repeats, got %+v", stats)
	}
	if len(rec.Presses()) != 5 {
		t.Errorf("expected 5 injected keystrokes, got %d", len(rec.Presses()))
	}
	for _, sym := range rec.Presses() {
		if sym != keymap.Up {
			t.Errorf("expected UP, got %s", sym)
		}
	}
}

func TestTickDrainsAllCompleteWindows(t *testing.T) {
	est := &script{}
	buf := framebuf.New(0)
	loop, _, events := newTestLoop(t, est, buf)

	buf.Push(make([]float32, 64*3+32))
	if err := loop.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if len(*events) != 3 {
		t.Errorf("expected 3 windows processed, got %d", len(*events))
	}
	if buf.Len() != 32 {
		t.Errorf("expected 32 samples left, got %d", buf.Len())
	}
	if loop.Stats().Backlog != 32 {
		t.Errorf("expected backlog 32, got %d", loop.Stats().Backlog)
	}
}

func TestUnclassifiedPitchIsSilence(t *testing.T) {
	est := &script{steps: []*pitch.Estimate{
		{Frequency: 120, Clarity: 0.9},
		{Frequency: 440, Clarity: 0.9},
	}}
	buf := framebuf.New(0)
	loop, _, events := newTestLoop(t, est, buf)

	pushWindows(buf, 2, 64)
	if err := loop.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	last := (*events)[1]
	if !last.Detected || last.Symbol != keymap.None {
		t.Errorf("expected detected but unclassified window, got %+v", last)
	}
	if last.Action.Kind != keystate.KindRelease {
		t.Errorf("expected release when pitch leaves the table, got %v", last.Action)
	}
}

func TestSwitchPressesWithoutRelease(t *testing.T) {
	est := &script{steps: []*pitch.Estimate{
		{Frequency: 120, Clarity: 0.9},
		{Frequency: 135, Clarity: 0.9},
	}}
	buf := framebuf.New(0)
	loop, rec, _ := newTestLoop(t, est, buf)

	pushWindows(buf, 2, 64)
	if err := loop.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	presses := rec.Presses()
	if len(presses) != 2 || presses[0] != keymap.Left || presses[1] != keymap.Right {
		t.Errorf("expected [LEFT RIGHT], got %v", presses)
	}
	if loop.Stats().Releases != 0 {
		t.Error("expected no release on direct switch")
	}
}

func TestInjectorErrorStopsRun(t *testing.T) {
	est := &script{steps: repeatEstimate(120, 1)}
	buf := framebuf.New(0)
	loop, rec, _ := newTestLoop(t, est, buf)

	boom := errors.New("uinput gone")
	rec.FailWith(boom)
	pushWindows(buf, 1, 64)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := loop.Run(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected injector error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	buf := framebuf.New(0)
	loop, _, _ := newTestLoop(t, &script{}, buf)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunConsumesConcurrentProducer(t *testing.T) {
	buf := framebuf.New(0)
	est := &script{}
	rec := inject.NewRecorder()
	loop, err := New(testConfig(), buf, est, rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()

	for i := 0; i < 20; i++ {
		buf.Push(make([]float32, 32))
		time.Sleep(time.Millisecond)
	}

	deadline := time.Now().Add(time.Second)
	for loop.Stats().Windows < 10 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if got := loop.Stats().Windows; got != 10 {
		t.Errorf("expected 10 windows from 640 samples, got %d", got)
	}
}

func TestBufferNotLockedDuringEstimate(t *testing.T) {
	buf := framebuf.New(0)
	est := pitch.EstimatorFunc(func(window []float32, sampleRate int, power, clarity float64) (pitch.Estimate, bool) {
		// Would deadlock if the loop held the buffer lock here
		buf.Push([]float32{1})
		_ = buf.Len()
		return pitch.Estimate{}, false
	})
	loop, _, _ := newTestLoop(t, est, buf)

	pushWindows(buf, 1, 64)
	done := make(chan error, 1)
	go func() { done <- loop.Tick() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Tick deadlocked")
	}
	if buf.Len() != 1 {
		t.Errorf("expected the pushed sample to remain, got %d", buf.Len())
	}
}

func TestBacklogCapReportsDrops(t *testing.T) {
	buf := framebuf.New(128)
	loop, _, _ := newTestLoop(t, &script{}, buf)

	buf.Push(make([]float32, 300))
	if err := loop.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	stats := loop.Stats()
	if stats.Dropped != 172 {
		t.Errorf("expected 172 dropped, got %d", stats.Dropped)
	}
	if stats.Windows != 2 {
		t.Errorf("expected 2 windows from the capped backlog, got %d", stats.Windows)
	}
}

func TestEventSequence(t *testing.T) {
	buf := framebuf.New(0)
	loop, _, events := newTestLoop(t, &script{}, buf)

	pushWindows(buf, 3, 64)
	loop.Tick()

	for i, ev := range *events {
		if ev.Seq != uint64(i+1) {
			t.Errorf("event %d: expected seq %d, got %d", i, i+1, ev.Seq)
		}
		if i > 0 && !ev.At.After((*events)[i-1].At) {
			t.Errorf("event %d: timestamps must increase", i)
		}
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	buf := framebuf.New(0)
	rec := inject.NewRecorder()

	bad := DefaultConfig()
	bad.WindowSize = 0
	if _, err := New(bad, buf, &script{}, rec); err == nil {
		t.Error("expected error for zero window size")
	}
	if _, err := New(DefaultConfig(), nil, &script{}, rec); err == nil {
		t.Error("expected error for nil buffer")
	}
	if _, err := New(DefaultConfig(), buf, nil, rec); err == nil {
		t.Error("expected error for nil estimator")
	}
	if _, err := New(DefaultConfig(), buf, &script{}, nil); err == nil {
		t.Error("expected error for nil injector")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero window", func(c *Config) { c.WindowSize = 0 }, true},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"negative power", func(c *Config) { c.PowerThreshold = -1 }, true},
		{"clarity above one", func(c *Config) { c.ClarityThreshold = 1.5 }, true},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.WindowSize != 2048 || cfg.PowerThreshold != 0.7 || cfg.ClarityThreshold != 0.2 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.PollInterval != 50*time.Millisecond {
		t.Errorf("expected 50ms poll, got %v", cfg.PollInterval)
	}
	if d := cfg.WindowDuration(); d < 46*time.Millisecond || d > 47*time.Millisecond {
		t.Errorf("expected ~46.4ms window at 44.1kHz, got %v", d)
	}
}
