// ABOUTME: Replays received key actions on a local injector
// ABOUTME: Presses on press and repeat; releases are only logged
package client

import (
	"context"
	"fmt"
	"log"

	"github.com/harperreed/singkeys/internal/protocol"
	"github.com/harperreed/singkeys/pkg/inject"
	"github.com/harperreed/singkeys/pkg/keymap"
	"github.com/harperreed/singkeys/pkg/keystate"
)

// ForwardStats counts forwarded actions
type ForwardStats struct {
	Pressed  int
	Released int
	Skipped  int    // unknown symbols or kinds
	Gaps     uint64 // actions missed according to the sequence numbers
}

// Forward presses every press and repeat from actions until the channel
// closes or ctx is done. An injector error stops forwarding.
func Forward(ctx context.Context, actions <-chan protocol.KeyAction, injector inject.Injector) (ForwardStats, error) {
	var stats ForwardStats
	var lastSeq uint64

	for {
		var action protocol.KeyAction
		var ok bool
		select {
		case <-ctx.Done():
			return stats, nil
		case action, ok = <-actions:
			if !ok {
				return stats, nil
			}
		}

		if lastSeq != 0 && action.Seq > lastSeq+1 {
			stats.Gaps += action.Seq - lastSeq - 1
			log.Printf("Warning: missed %d key action(s) before #%d", action.Seq-lastSeq-1, action.Seq)
		}
		if action.Seq > lastSeq {
			lastSeq = action.Seq
		}

		kind, err := keystate.ParseKind(action.Kind)
		if err != nil {
			log.Printf("Skipping action #%d: %v", action.Seq, err)
			stats.Skipped++
			continue
		}
		sym, err := keymap.Parse(action.Symbol)
		if err != nil || sym == keymap.None {
			log.Printf("Skipping action #%d: unknown symbol %q", action.Seq, action.Symbol)
			stats.Skipped++
			continue
		}

		switch kind {
		case keystate.KindPress, keystate.KindRepeat:
			if err := injector.Press(sym); err != nil {
				return stats, fmt.Errorf("press %s: %w", sym, err)
			}
			stats.Pressed++
		case keystate.KindRelease:
			log.Printf("Release %s", sym)
			stats.Released++
		default:
			stats.Skipped++
		}
	}
}
