// ABOUTME: Key event state machine package
// ABOUTME: Converts a stream of symbols into debounced press/repeat/release actions
// Package keystate implements the hold and auto-repeat policy for sung keys.
//
// A new symbol produces a Press. Sustaining it for HoldThreshold starts
// auto-repeat, at most one Repeat per RepeatInterval. Silence produces a
// Release. Switching directly to a different symbol presses the new one
// without releasing the old one.
//
// Example:
//
//	m := keystate.New()
//	action := m.Step(keymap.Left, time.Now())
//	if action.Injects() {
//	    injector.Press(action.Symbol)
//	}
package keystate
