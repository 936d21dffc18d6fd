// ABOUTME: Entry point for singkeys
// ABOUTME: Parses CLI flags and turns sung pitches into key presses
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/singkeys/internal/app"
	"github.com/harperreed/singkeys/internal/ui"
	"github.com/harperreed/singkeys/internal/version"
	"github.com/harperreed/singkeys/pkg/audio/capture"
)

var (
	input      = flag.String("input", capture.BackendMalgo, "Audio input: malgo, portaudio, file or tone")
	device     = flag.String("device", "", "Input device name substring (default: system default)")
	file       = flag.String("file", "", "Audio file for -input file (MP3, FLAC, WAV)")
	loop       = flag.Bool("loop", false, "Restart the file or tone schedule at the end")
	tones      = flag.String("tones", "", "Tone schedule for -input tone, e.g. LEFT:400ms,0:200ms,150:1s")
	sampleRate = flag.Int("sample-rate", 44100, "Capture sample rate (0 = device or file native rate)")
	window     = flag.Int("window", 2048, "Analysis window size in samples")
	pollMs     = flag.Int("poll-ms", 50, "Analysis poll interval in milliseconds")
	maxBacklog = flag.Int("max-backlog", 0, "Maximum buffered samples before the oldest are dropped (0 = unbounded)")
	dryRun     = flag.Bool("dry-run", false, "Log key presses instead of sending them")
	serve      = flag.Bool("serve", false, "Broadcast key actions to remote clients over WebSocket")
	port       = flag.Int("port", 8928, "Event feed port")
	name       = flag.String("name", "", "Event feed name (default: hostname-singkeys)")
	noMDNS     = flag.Bool("no-mdns", false, "Do not advertise the event feed over mDNS")
	logFile    = flag.String("log-file", "singkeys.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs = flag.Bool("stream-logs", false, "Alias for -no-tui")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	useTUI := !(*noTUI || *streamLogs)

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	feedName := *name
	if feedName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		feedName = fmt.Sprintf("%s-singkeys", hostname)
	}

	log.Printf("Starting %s %s", version.Product, version.Version)

	config := app.DefaultConfig()
	config.Debug = *debug
	config.DryRun = *dryRun
	config.MaxBacklog = *maxBacklog

	config.Capture.Backend = *input
	config.Capture.Device = *device
	config.Capture.File = *file
	config.Capture.Loop = *loop
	config.Capture.Tones = *tones
	config.Capture.SampleRate = *sampleRate
	config.Capture.Debug = *debug

	config.Pipeline.WindowSize = *window
	config.Pipeline.PollInterval = time.Duration(*pollMs) * time.Millisecond
	config.Pipeline.Debug = *debug

	config.Serve = *serve
	config.Server.Port = *port
	config.Server.Name = feedName
	config.Server.EnableMDNS = !*noMDNS
	config.Server.Debug = *debug

	var tui *ui.TUI
	var opts app.Options
	if useTUI {
		tui = ui.New(tea.WithAltScreen())
		opts.OnStatus = tui.Update
	}

	a, err := app.New(config, opts)
	if err != nil {
		// The log may be file-only in TUI mode
		log.Printf("Failed to start: %v", err)
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()

	var tuiDone chan struct{}
	var tuiQuit <-chan struct{}
	if tui != nil {
		tuiDone = make(chan struct{})
		tuiQuit = tui.QuitChan()
		go func() {
			defer close(tuiDone)
			if err := tui.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigChan:
		log.Printf("Shutdown signal received")
		cancel()
		runErr = <-done
	case <-tuiQuit:
		log.Printf("Received quit signal from TUI")
		cancel()
		runErr = <-done
	case runErr = <-done:
	}

	if tui != nil {
		tui.Stop()
		<-tuiDone
	}

	if runErr != nil {
		log.Fatalf("singkeys stopped: %v", runErr)
	}

	stats := a.Stats()
	log.Printf("Stopped after %d windows: %d presses, %d repeats, %d releases",
		stats.Windows, stats.Presses, stats.Repeats, stats.Releases)
}
