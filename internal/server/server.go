// ABOUTME: Event feed server for remote key injection
// ABOUTME: Manages WebSocket clients and broadcasts key actions from the analysis loop
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harperreed/singkeys/internal/discovery"
	"github.com/harperreed/singkeys/internal/protocol"
	"github.com/harperreed/singkeys/pkg/pipeline"
)

const (
	// DefaultPort is the feed's listening port
	DefaultPort = 8928

	// DefaultSendBuffer is the per-client queue length
	DefaultSendBuffer = 64

	helloTimeout  = 10 * time.Second
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Debug      bool
	SendBuffer int // messages queued per client before drops

	// Reported to clients in server/hello
	WindowSize int
	SampleRate int
}

// DefaultConfig returns a feed server on DefaultPort with mDNS enabled
func DefaultConfig() Config {
	return Config{
		Port:       DefaultPort,
		Name:       "singkeys",
		EnableMDNS: true,
		SendBuffer: DefaultSendBuffer,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be within [0, 65535], got %d", c.Port)
	}
	if c.Name == "" {
		return errors.New("server name must not be empty")
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send buffer must be positive, got %d", c.SendBuffer)
	}
	return nil
}

// Stats reports feed activity
type Stats struct {
	Clients int
	Sent    uint64 // key actions queued for delivery, summed over clients
	Dropped uint64 // key actions dropped because a client queue was full
}

// Server broadcasts key actions to connected clients
type Server struct {
	config   Config
	serverID string

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*Client
	clientsMu sync.RWMutex

	mdnsManager *discovery.Manager

	seq     atomic.Uint64
	sent    atomic.Uint64
	dropped atomic.Uint64

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client represents a connected feed client
type Client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	sendChan chan interface{}
}

// New creates a new server instance
func New(config Config) *Server {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultSendBuffer
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local network feed; browser origins are logged, not refused
				if origin := r.Header.Get("Origin"); origin != "" {
					log.Printf("Warning: accepting WebSocket from origin: %s", origin)
				}
				return true
			},
		},
		clients:  make(map[string]*Client),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc(discovery.FeedPath, s.handleWebSocket)
	return s
}

// ID returns the server's UUID
func (s *Server) ID() string {
	return s.serverID
}

// Handler returns the HTTP handler serving the feed
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on config.Port and serves until Stop
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves the feed on listener until Stop
func (s *Server) Serve(listener net.Listener) error {
	log.Printf("Event feed starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		port := s.config.Port
		if tcp, ok := listener.Addr().(*net.TCPAddr); ok {
			port = tcp.Port
		}
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        port,
			Debug:       s.config.Debug,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	log.Printf("WebSocket feed listening on %s%s", listener.Addr(), discovery.FeedPath)

	s.httpServer = &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Event feed shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
		s.Stop()
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Event feed stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop rejects new connections and disconnects every client
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.shutdownMu.Lock()
		s.isShutdown = true
		s.shutdownMu.Unlock()

		close(s.stopChan)

		s.clientsMu.RLock()
		for _, client := range s.clients {
			client.Conn.Close()
		}
		s.clientsMu.RUnlock()
	})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection runs the handshake and holds the client until it disconnects
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	if s.config.Debug {
		log.Printf("[DEBUG] New connection, waiting for handshake")
	}

	hello, err := readHello(conn)
	if err != nil {
		log.Printf("Handshake failed: %v", err)
		rejectConn(conn, "invalid_hello", err.Error())
		return
	}

	log.Printf("Client hello: %s (ID: %s)", hello.Name, hello.ClientID)

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan interface{}, s.config.SendBuffer),
	}

	// Check for duplicate client ID and register atomically
	s.clientsMu.Lock()
	if existing, exists := s.clients[hello.ClientID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected (name: %s), rejecting duplicate", hello.ClientID, existing.Name)
		rejectConn(conn, "duplicate_client_id", "Client ID already connected")
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		close(client.sendChan)
		log.Printf("Client disconnected: %s", client.Name)
	}()

	serverHello := protocol.ServerHello{
		ServerID:   s.serverID,
		Name:       s.config.Name,
		Version:    protocol.ProtocolVersion,
		WindowSize: s.config.WindowSize,
		SampleRate: s.config.SampleRate,
	}
	if err := s.sendMessage(client, protocol.TypeServerHello, serverHello); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	// Clients have nothing to say after the handshake; reading detects disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && s.config.Debug {
				log.Printf("[DEBUG] WebSocket error: %v", err)
			}
			return
		}
	}
}

// readHello waits for and validates client/hello
func readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	var hello protocol.ClientHello

	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return hello, fmt.Errorf("error reading hello: %w", err)
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return hello, fmt.Errorf("error unmarshaling message: %w", err)
	}
	if msg.Type != protocol.TypeClientHello {
		return hello, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}
	if err := protocol.DecodePayload(msg.Payload, &hello); err != nil {
		return hello, err
	}

	if hello.ClientID == "" {
		return hello, errors.New("client hello missing client_id")
	}
	if hello.Name == "" {
		return hello, errors.New("client hello missing name")
	}
	return hello, nil
}

// rejectConn sends server/error directly; the writer goroutine is not running yet
func rejectConn(conn *websocket.Conn, code, message string) {
	msg := protocol.Message{
		Type:    protocol.TypeServerError,
		Payload: protocol.ServerError{Error: code, Message: message},
	}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending server error: %v", err)
	}
}

// clientWriter sends queued messages and keepalive pings
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Error marshaling message: %v", err)
				continue
			}
			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing to %s: %v", client.Name, err)
				client.Conn.Close()
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				client.Conn.Close()
				return
			}
		}
	}
}

// sendMessage queues a JSON message without blocking
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case client.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// OnEvent implements pipeline.Observer. Only windows that emit an action
// reach the feed.
func (s *Server) OnEvent(ev pipeline.Event) {
	if !ev.Action.Emitted() {
		return
	}

	action := protocol.KeyAction{
		Kind:     ev.Action.Kind.String(),
		Symbol:   ev.Action.Symbol.String(),
		AtUnixMs: ev.Action.At.UnixMilli(),
	}
	if ev.Detected {
		action.Frequency = ev.Estimate.Frequency
		action.Clarity = ev.Estimate.Clarity
	}
	s.Broadcast(action)
}

// Broadcast assigns the next sequence number and queues action for every client
func (s *Server) Broadcast(action protocol.KeyAction) {
	action.Seq = s.seq.Add(1)

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		if err := s.sendMessage(client, protocol.TypeKeyAction, action); err != nil {
			s.dropped.Add(1)
			if s.config.Debug {
				log.Printf("[DEBUG] Dropped %s for %s: %v", action.Kind, client.Name, err)
			}
			continue
		}
		s.sent.Add(1)
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// ClientNames returns the names of connected clients
func (s *Server) ClientNames() []string {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	names := make([]string, 0, len(s.clients))
	for _, client := range s.clients {
		names = append(names, client.Name)
	}
	return names
}

// Stats returns current feed statistics
func (s *Server) Stats() Stats {
	return Stats{
		Clients: s.ClientCount(),
		Sent:    s.sent.Load(),
		Dropped: s.dropped.Load(),
	}
}
