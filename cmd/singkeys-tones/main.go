// ABOUTME: Entry point for the singkeys tone trainer
// ABOUTME: Plays the target pitch of each key through the speakers
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/harperreed/singkeys/pkg/audio/capture"
	"github.com/harperreed/singkeys/pkg/audio/output"
	"github.com/harperreed/singkeys/pkg/keymap"
)

var (
	keys       = flag.String("keys", "", "Comma-separated keys to play (default: every key, low to high)")
	duration   = flag.Duration("duration", time.Second, "How long each key's tone plays")
	gap        = flag.Duration("gap", 300*time.Millisecond, "Silence between tones")
	sampleRate = flag.Int("sample-rate", 44100, "Playback sample rate")
	volume     = flag.Int("volume", 60, "Playback volume (0-100)")
	backend    = flag.String("output", "oto", "Audio output: oto or portaudio")
	loop       = flag.Bool("loop", false, "Repeat until interrupted")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

// player is the playback side shared by both backends
type player interface {
	output.Output
	SetVolume(volume int)
}

func main() {
	flag.Parse()

	symbols, err := selectKeys(*keys)
	if err != nil {
		log.Fatalf("Invalid -keys: %v", err)
	}

	var items []string
	for _, sym := range symbols {
		r, _ := keymap.RangeOf(sym)
		fmt.Printf("  %-9s %6.1f Hz  (%.0f-%.0f)\n", sym, r.Center(), r.Low, r.High)
		items = append(items, fmt.Sprintf("%s:%v", sym, *duration))
		if *gap > 0 {
			items = append(items, fmt.Sprintf("0:%v", *gap))
		}
	}

	var out player
	switch *backend {
	case "oto":
		out = output.NewOto()
	case "portaudio":
		out = output.NewPortAudio()
	default:
		log.Fatalf("Unknown output %q (oto or portaudio)", *backend)
	}

	if err := out.Open(*sampleRate, 1); err != nil {
		log.Fatalf("Failed to open audio output: %v", err)
	}
	defer out.Close()
	out.SetVolume(*volume)

	// The output's blocking Write paces the tone source
	tone, err := capture.NewTone(capture.Config{
		Backend:      capture.BackendTone,
		SampleRate:   *sampleRate,
		Channels:     1,
		BufferFrames: 1024,
		Tones:        strings.Join(items, ","),
		Loop:         *loop,
		Debug:        *debug,
	})
	if err != nil {
		log.Fatalf("Invalid tone schedule: %v", err)
	}

	done := make(chan error, 1)
	tone.OnError(func(err error) {
		select {
		case done <- err:
		default:
		}
	})

	if err := tone.Start(func(samples []float32) {
		if err := out.Write(samples); err != nil {
			log.Printf("Playback error: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to start tones: %v", err)
	}
	defer tone.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Printf("Interrupted")
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			log.Printf("Tone error: %v", err)
		}
		// Let the device drain the last buffer
		time.Sleep(200 * time.Millisecond)
	}
}

// selectKeys parses -keys, defaulting to the whole table
func selectKeys(list string) ([]keymap.Symbol, error) {
	if list == "" {
		var all []keymap.Symbol
		for _, r := range keymap.Ranges() {
			all = append(all, r.Symbol)
		}
		return all, nil
	}

	var symbols []keymap.Symbol
	for _, name := range strings.Split(list, ",") {
		sym, err := keymap.Parse(strings.ToUpper(strings.TrimSpace(name)))
		if err != nil {
			return nil, err
		}
		if sym == keymap.None {
			return nil, errors.New("NONE has no tone")
		}
		symbols = append(symbols, sym)
	}
	return symbols, nil
}
