// ABOUTME: mDNS service discovery for the singkeys event feed
// ABOUTME: Advertises a feed server and browses for feeds on the local network
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD type of a singkeys feed
	ServiceType = "_singkeys._tcp"

	// FeedPath is the WebSocket path advertised in the TXT record
	FeedPath = "/singkeys"

	queryTimeout = 3 * time.Second
)

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Debug       bool
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered feed server
type ServerInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// Addr returns host:port
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprintf("%d", s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise announces the feed server until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + FeedPath},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for feed servers until Stop
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

// browseLoop repeats short queries until the manager stops
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				server := entryToServer(entry)
				if server == nil {
					continue
				}

				log.Printf("Discovered feed: %s at %s", server.Name, server.Addr())

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service:     ServiceType,
			Domain:      "local",
			Timeout:     queryTimeout,
			Entries:     entries,
			DisableIPv6: true,
		}

		if err := mdns.Query(params); err != nil && m.config.Debug {
			log.Printf("[DEBUG] mDNS query error: %v", err)
		}
		close(entries)
		<-done
	}
}

// Servers returns the channel of discovered servers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Discover browses until the first server appears or timeout elapses
func (m *Manager) Discover(ctx context.Context, timeout time.Duration) (*ServerInfo, error) {
	if err := m.Browse(); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case server := <-m.servers:
		return server, nil
	case <-timer.C:
		return nil, fmt.Errorf("no %s service found within %v", ServiceType, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// entryToServer converts a query result, preferring IPv4. Returns nil
// when the entry has no usable address.
func entryToServer(entry *mdns.ServiceEntry) *ServerInfo {
	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	case entry.Host != "":
		host = strings.TrimSuffix(entry.Host, ".")
	default:
		return nil
	}

	path := FeedPath
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "path="); ok && v != "" {
			path = v
		}
	}

	return &ServerInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: host,
		Port: entry.Port,
		Path: path,
	}
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
