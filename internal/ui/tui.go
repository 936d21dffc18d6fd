// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and forwards status updates to it
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TUI manages the bubbletea program
type TUI struct {
	program  *tea.Program
	updates  chan StatusMsg
	quitChan chan struct{}
}

// New creates a TUI. Options are passed to tea.NewProgram.
func New(opts ...tea.ProgramOption) *TUI {
	t := &TUI{
		updates:  make(chan StatusMsg, 16),
		quitChan: make(chan struct{}, 1),
	}
	t.program = tea.NewProgram(NewModel(t.quitChan), opts...)
	return t
}

// Run forwards updates to the program and blocks until it exits
func (t *TUI) Run() error {
	go func() {
		for status := range t.updates {
			t.program.Send(status)
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update without blocking
func (t *TUI) Update(status StatusMsg) {
	select {
	case t.updates <- status:
	default:
		// Drop when the program is behind; the next update supersedes it
	}
}

// Stop quits the program
func (t *TUI) Stop() {
	t.program.Quit()
}

// QuitChan signals when the user asked to quit
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
