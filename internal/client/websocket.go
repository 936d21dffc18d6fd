// ABOUTME: WebSocket client for the singkeys event feed
// ABOUTME: Handles connection, handshake, and delivery of key actions
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harperreed/singkeys/internal/discovery"
	"github.com/harperreed/singkeys/internal/protocol"
)

// ErrRejected is returned when the server answers the hello with server/error
var ErrRejected = errors.New("server rejected connection")

// Config holds client configuration
type Config struct {
	ServerAddr string // host:port
	Path       string // empty = discovery.FeedPath
	ClientID   string
	Name       string
	Debug      bool
}

// Client receives key actions from a feed server
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Actions delivers key/action payloads; closed when the connection ends
	Actions chan protocol.KeyAction

	hello     protocol.ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	if config.Path == "" {
		config.Path = discovery.FeedPath
	}

	return &Client{
		config:  config,
		Actions: make(chan protocol.KeyAction, 32),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.ProtocolVersion,
	}
	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch msg.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var serverErr protocol.ServerError
		protocol.DecodePayload(msg.Payload, &serverErr)
		return fmt.Errorf("%w: %s (%s)", ErrRejected, serverErr.Message, serverErr.Error)
	default:
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	var serverHello protocol.ServerHello
	if err := protocol.DecodePayload(msg.Payload, &serverHello); err != nil {
		return fmt.Errorf("failed to decode server/hello: %w", err)
	}

	c.mu.Lock()
	c.hello = serverHello
	c.mu.Unlock()

	log.Printf("Handshake complete with %s (window %d @ %dHz)",
		serverHello.Name, serverHello.WindowSize, serverHello.SampleRate)
	return nil
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteJSON(msg)
}

// readMessages routes incoming messages until the connection ends
func (c *Client) readMessages() {
	defer close(c.Actions)
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.Printf("Read error: %v", err)
			}
			return
		}

		c.handleJSONMessage(data)
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeKeyAction:
		var action protocol.KeyAction
		if err := protocol.DecodePayload(msg.Payload, &action); err != nil {
			log.Printf("Invalid key action: %v", err)
			return
		}
		if c.config.Debug {
			log.Printf("[DEBUG] Key action #%d: %s %s", action.Seq, action.Kind, action.Symbol)
		}
		select {
		case c.Actions <- action:
		case <-c.ctx.Done():
		}

	case protocol.TypeServerError:
		var serverErr protocol.ServerError
		protocol.DecodePayload(msg.Payload, &serverErr)
		log.Printf("Server error: %s (%s)", serverErr.Message, serverErr.Error)

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// ServerHello returns the handshake reply
func (c *Client) ServerHello() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// Done is closed once the client is closed or the connection drops
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.connected = false
		c.cancel()
		if c.conn != nil {
			c.conn.Close()
		}
		log.Printf("Connection closed")
	})
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
