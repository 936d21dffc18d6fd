// ABOUTME: OS keyboard injector backed by keybd_event
// ABOUTME: Maps sung symbols to arrow, editing and letter keys
package inject

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/harperreed/singkeys/pkg/keymap"
	"github.com/micmonay/keybd_event"
)

// linuxSettle is how long uinput needs before the virtual device accepts events
const linuxSettle = 2 * time.Second

// KeyCodes maps each symbol to its virtual key code
var KeyCodes = map[keymap.Symbol]int{
	keymap.Down:      keybd_event.VK_DOWN,
	keymap.Left:      keybd_event.VK_LEFT,
	keymap.Right:     keybd_event.VK_RIGHT,
	keymap.Up:        keybd_event.VK_UP,
	keymap.Backspace: keybd_event.VK_BACKSPACE,
	keymap.X:         keybd_event.VK_X,
	keymap.Z:         keybd_event.VK_Z,
	keymap.A:         keybd_event.VK_A,
	keymap.S:         keybd_event.VK_S,
	keymap.Confirm:   keybd_event.VK_ENTER,
}

// Keyboard sends real key clicks to the focused application
type Keyboard struct {
	mu sync.Mutex
	kb keybd_event.KeyBonding
}

// NewKeyboard creates the virtual keyboard. On Linux this needs write
// access to /dev/uinput and blocks briefly while the device registers.
func NewKeyboard() (*Keyboard, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual keyboard: %w", err)
	}

	if runtime.GOOS == "linux" {
		log.Printf("Waiting %v for virtual keyboard to register", linuxSettle)
		time.Sleep(linuxSettle)
	}

	return &Keyboard{kb: kb}, nil
}

// Press implements Injector with a down+up click
func (k *Keyboard) Press(sym keymap.Symbol) error {
	code, ok := KeyCodes[sym]
	if !ok {
		return fmt.Errorf("press %s: %w", sym, ErrUnmapped)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.kb.Clear()
	k.kb.SetKeys(code)
	if err := k.kb.Launching(); err != nil {
		return fmt.Errorf("press %s: %w", sym, err)
	}
	return nil
}
