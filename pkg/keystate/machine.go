// ABOUTME: Debounce, hold and auto-repeat state machine for sung keys
// ABOUTME: Turns per-window classifications into Press/Repeat/Release actions
package keystate

import (
	"fmt"
	"time"

	"github.com/harperreed/singkeys/pkg/keymap"
)

const (
	// HoldThreshold is how long a symbol must be sustained before repeating
	HoldThreshold = 250 * time.Millisecond

	// RepeatInterval is the minimum spacing between repeats
	RepeatInterval = 100 * time.Millisecond
)

// Kind is the type of action emitted by a step
type Kind int

const (
	KindNone Kind = iota
	KindPress
	KindRepeat
	KindRelease
)

func (k Kind) String() string {
	switch k {
	case KindPress:
		return "press"
	case KindRepeat:
		return "repeat"
	case KindRelease:
		return "release"
	default:
		return "none"
	}
}

// ParseKind converts a wire name back to a Kind
func ParseKind(name string) (Kind, error) {
	switch name {
	case "press":
		return KindPress, nil
	case "repeat":
		return KindRepeat, nil
	case "release":
		return KindRelease, nil
	case "none":
		return KindNone, nil
	}
	return KindNone, fmt.Errorf("unknown action kind: %q", name)
}

// Action is the outcome of one step
type Action struct {
	Kind   Kind
	Symbol keymap.Symbol
	At     time.Time
}

// Emitted reports whether the step produced an action
func (a Action) Emitted() bool {
	return a.Kind != KindNone
}

// Injects reports whether the action should reach the key injector.
// Presses are down+up clicks, so releases never do.
func (a Action) Injects() bool {
	return a.Kind == KindPress || a.Kind == KindRepeat
}

func (a Action) String() string {
	if a.Kind == KindNone {
		return "none"
	}
	return fmt.Sprintf("%s(%s)", a.Kind, a.Symbol)
}

// KeyState is the mutable state of the machine. A zero time is absent.
// When Active is None both marks are zero; otherwise HoldStart is set.
type KeyState struct {
	Active     keymap.Symbol
	HoldStart  time.Time
	LastRepeat time.Time
}

// Idle reports whether no symbol is held
func (s KeyState) Idle() bool {
	return s.Active == keymap.None
}

// HeldFor returns how long the active symbol has been held at now
func (s KeyState) HeldFor(now time.Time) time.Duration {
	if s.Idle() {
		return 0
	}
	return now.Sub(s.HoldStart)
}

// Machine applies the hold/repeat policy to a KeyState it owns
type Machine struct {
	state          KeyState
	holdThreshold  time.Duration
	repeatInterval time.Duration
	debug          bool
	logf           func(format string, args ...interface{})
}

// New creates a machine in the Idle state with the fixed policy
func New() *Machine {
	return &Machine{
		holdThreshold:  HoldThreshold,
		repeatInterval: RepeatInterval,
		logf:           func(string, ...interface{}) {},
	}
}

// SetLogger routes transition logging through logf; debug enables the
// hold-wait lines.
func (m *Machine) SetLogger(logf func(format string, args ...interface{}), debug bool) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	m.logf = logf
	m.debug = debug
}

// State returns a snapshot of the current state
func (m *Machine) State() KeyState {
	return m.state
}

// Step feeds the next classification observed at now and returns the
// resulting action. next == keymap.None means no symbol this window.
func (m *Machine) Step(next keymap.Symbol, now time.Time) Action {
	return Step(&m.state, next, now, m.holdThreshold, m.repeatInterval, m.logf, m.debug)
}

// Step is the transition function over an explicit KeyState
func Step(s *KeyState, next keymap.Symbol, now time.Time, hold, repeat time.Duration,
	logf func(format string, args ...interface{}), debug bool) Action {

	switch {
	case next != keymap.None && next == s.Active:
		held := now.Sub(s.HoldStart)
		if held < hold {
			if debug {
				logf("[DEBUG] Holding %s for %v, waiting for hold threshold", next, held)
			}
			return Action{}
		}
		if s.LastRepeat.IsZero() || now.Sub(s.LastRepeat) >= repeat {
			s.LastRepeat = now
			logf("Repeat %s (held %v)", next, held)
			return Action{Kind: KindRepeat, Symbol: next, At: now}
		}
		return Action{}

	case next != keymap.None:
		if s.Active != keymap.None {
			logf("Switching %s -> %s", s.Active, next)
		}
		s.Active = next
		s.HoldStart = now
		s.LastRepeat = now
		logf("Press %s", next)
		return Action{Kind: KindPress, Symbol: next, At: now}

	case s.Active != keymap.None:
		released := s.Active
		*s = KeyState{}
		logf("Release %s", released)
		return Action{Kind: KindRelease, Symbol: released, At: now}
	}

	return Action{}
}
