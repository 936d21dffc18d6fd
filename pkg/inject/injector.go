// ABOUTME: Injector interface and simple in-process backends
// ABOUTME: DryRun logs, Multi fans out, Recorder keeps presses for inspection
package inject

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/harperreed/singkeys/pkg/keymap"
)

// ErrUnmapped is returned for symbols the backend has no key for
var ErrUnmapped = errors.New("symbol has no key mapping")

// Injector presses a key for a symbol
type Injector interface {
	Press(sym keymap.Symbol) error
}

// DryRun logs presses instead of sending them
type DryRun struct {
	Prefix string
}

// NewDryRun creates a logging-only injector
func NewDryRun() *DryRun {
	return &DryRun{Prefix: "[dry-run]"}
}

// Press implements Injector
func (d *DryRun) Press(sym keymap.Symbol) error {
	if sym == keymap.None {
		return fmt.Errorf("press %s: %w", sym, ErrUnmapped)
	}
	log.Printf("%s press %s", d.Prefix, sym)
	return nil
}

// Multi presses on every injector in order
type Multi []Injector

// Press implements Injector, stopping at the first error
func (m Multi) Press(sym keymap.Symbol) error {
	for i, inj := range m {
		if err := inj.Press(sym); err != nil {
			return fmt.Errorf("injector %d: %w", i, err)
		}
	}
	return nil
}

// Recorder keeps every press in memory
type Recorder struct {
	mu      sync.Mutex
	presses []keymap.Symbol
	err     error
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent presses return err (nil clears it)
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Press implements Injector
func (r *Recorder) Press(sym keymap.Symbol) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.presses = append(r.presses, sym)
	return nil
}

// Presses returns a copy of the recorded symbols
func (r *Recorder) Presses() []keymap.Symbol {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]keymap.Symbol, len(r.presses))
	copy(out, r.presses)
	return out
}
