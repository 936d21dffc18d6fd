// ABOUTME: Entry point for the singkeys remote injector
// ABOUTME: Receives key actions from a singkeys feed and presses them on this machine
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

	"github.com/google/uuid"
	"github.com/harperreed/singkeys/internal/client"
	"github.com/harperreed/singkeys/internal/discovery"
	"github.com/harperreed/singkeys/internal/version"
	"github.com/harperreed/singkeys/pkg/inject"
)

var (
	serverAddr = flag.String("server", "", "Feed address host:port (skip mDNS)")
	name       = flag.String("name", "", "Remote friendly name (default: hostname-singkeys-remote)")
	dryRun     = flag.Bool("dry-run", false, "Log key presses instead of sending them")
	timeout    = flag.Duration("discover-timeout", 10*time.Second, "How long to browse mDNS for a feed")
	logFile    = flag.String("log-file", "singkeys-remote.log", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(os.Stdout, f))

	remoteName := *name
	if remoteName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		remoteName = fmt.Sprintf("%s-singkeys-remote", hostname)
	}

	log.Printf("Starting %s remote %s: %s", version.Product, version.Version, remoteName)

	var injector inject.Injector
	if *dryRun {
		injector = inject.NewDryRun()
	} else {
		kb, err := inject.NewKeyboard()
		if err != nil {
			log.Fatalf("Failed to open keyboard injector: %v", err)
		}
		injector = kb
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down...", sig)
		cancel()
	}()

	addr, path := *serverAddr, ""
	if addr == "" {
		log.Printf("Browsing for %s feeds...", discovery.ServiceType)
		disc := discovery.NewManager(discovery.Config{Debug: *debug})
		server, err := disc.Discover(ctx, *timeout)
		disc.Stop()
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		addr, path = server.Addr(), server.Path
		log.Printf("Discovered feed %s at %s", server.Name, addr)
	}

	c := client.NewClient(client.Config{
		ServerAddr: addr,
		Path:       path,
		ClientID:   uuid.New().String(),
		Name:       remoteName,
		Debug:      *debug,
	})
	if err := c.Connect(); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer c.Close()

	log.Printf("Connected to feed: %s", addr)

	stats, err := client.Forward(ctx, c.Actions, injector)
	if err != nil {
		log.Printf("Forwarding stopped: %v", err)
	}

	log.Printf("Remote stopped: %d pressed, %d released, %d skipped, %d missed",
		stats.Pressed, stats.Released, stats.Skipped, stats.Gaps)
}
