// ABOUTME: Keystroke injection package
// ABOUTME: Injector interface with OS keyboard, dry-run, fan-out and recording backends
// Package inject delivers key presses to the operating system.
//
// Every backend implements Injector. Press is a synchronous down+up click;
// there is no separate key-up call.
//
//   - Keyboard: synthesises real key events through keybd_event
//   - DryRun: logs presses without touching the OS
//   - Multi: fans a press out to several injectors
//   - Recorder: keeps presses in memory
//
// Example:
//
//	kb, err := inject.NewKeyboard()
//	if err != nil {
//	    log.Fatalf("keyboard: %v", err)
//	}
//	err = kb.Press(keymap.Left)
package inject
