// ABOUTME: Tests for the event feed server
// ABOUTME: Drives handshakes and broadcasts over real WebSocket connections
package server

import (
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harperreed/singkeys/internal/protocol"
	"github.com/harperreed/singkeys/pkg/keymap"
	"github.com/harperreed/singkeys/pkg/keystate"
	"github.com/harperreed/singkeys/pkg/pipeline"
	"github.com/harperreed/singkeys/pkg/pitch"
)

func testConfig() Config {
	config := DefaultConfig()
	config.EnableMDNS = false
	config.Name = "Test Feed"
	config.WindowSize = 2048
	config.SampleRate = 44100
	return config
}

// startFeed serves s through httptest and returns the feed URL
func startFeed(t *testing.T, config Config) (*Server, string) {
	t.Helper()
	s := New(config)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Stop()
		ts.Close()
	})
	return s, "ws" + strings.TrimPrefix(ts.URL, "http") + "/singkeys"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

// hello performs the handshake and returns the server's reply
func hello(t *testing.T, conn *websocket.Conn, id, name string) protocol.Message {
	t.Helper()
	msg := protocol.Message{
		Type:    protocol.TypeClientHello,
		Payload: protocol.ClientHello{ClientID: id, Name: name, Version: protocol.ProtocolVersion},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	return readMessage(t, conn)
}

func pressEvent(sym keymap.Symbol, kind keystate.Kind, freq float64) pipeline.Event {
	now := time.UnixMilli(1700000000000)
	return pipeline.Event{
		Seq:      1,
		At:       now,
		Estimate: pitch.Estimate{Frequency: freq, Clarity: 0.95},
		Detected: freq > 0,
		Symbol:   sym,
		Action:   keystate.Action{Kind: kind, Symbol: sym, At: now},
	}
}

func TestHandshake(t *testing.T) {
	s, url := startFeed(t, testConfig())
	conn := dial(t, url)

	msg := hello(t, conn, "remote-1", "Living Room")
	if msg.Type != protocol.TypeServerHello {
		t.Fatalf("expected %s, got %s", protocol.TypeServerHello, msg.Type)
	}

	var reply protocol.ServerHello
	if err := protocol.DecodePayload(msg.Payload, &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.ServerID != s.ID() {
		t.Errorf("expected server ID %s, got %s", s.ID(), reply.ServerID)
	}
	if reply.Name != "Test Feed" || reply.Version != protocol.ProtocolVersion {
		t.Errorf("unexpected hello: %+v", reply)
	}
	if reply.WindowSize != 2048 || reply.SampleRate != 44100 {
		t.Errorf("expected 2048 @ 44100, got %d @ %d", reply.WindowSize, reply.SampleRate)
	}

	if s.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", s.ClientCount())
	}
	if names := s.ClientNames(); len(names) != 1 || names[0] != "Living Room" {
		t.Errorf("unexpected client names: %v", names)
	}
}

func TestBroadcastKeyActions(t *testing.T) {
	s, url := startFeed(t, testConfig())
	conn := dial(t, url)
	hello(t, conn, "remote-1", "Living Room")

	s.OnEvent(pressEvent(keymap.Left, keystate.KindPress, 121.5))
	s.OnEvent(pressEvent(keymap.Left, keystate.KindNone, 121.5))
	s.OnEvent(pressEvent(keymap.Left, keystate.KindRelease, 0))

	expected := []protocol.KeyAction{
		{Seq: 1, Kind: "press", Symbol: "LEFT", AtUnixMs: 1700000000000, Frequency: 121.5, Clarity: 0.95},
		{Seq: 2, Kind: "release", Symbol: "LEFT", AtUnixMs: 1700000000000},
	}

	for i, want := range expected {
		msg := readMessage(t, conn)
		if msg.Type != protocol.TypeKeyAction {
			t.Fatalf("message %d: expected %s, got %s", i, protocol.TypeKeyAction, msg.Type)
		}
		var got protocol.KeyAction
		if err := protocol.DecodePayload(msg.Payload, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got != want {
			t.Errorf("message %d: expected %+v, got %+v", i, want, got)
		}
	}

	stats := s.Stats()
	if stats.Sent != 2 || stats.Dropped != 0 {
		t.Errorf("expected 2 sent and 0 dropped, got %+v", stats)
	}
}

func TestDuplicateClientRejected(t *testing.T) {
	s, url := startFeed(t, testConfig())

	first := dial(t, url)
	hello(t, first, "remote-1", "Kitchen")

	second := dial(t, url)
	msg := hello(t, second, "remote-1", "Impostor")
	if msg.Type != protocol.TypeServerError {
		t.Fatalf("expected %s, got %s", protocol.TypeServerError, msg.Type)
	}

	var serverErr protocol.ServerError
	protocol.DecodePayload(msg.Payload, &serverErr)
	if serverErr.Error != "duplicate_client_id" {
		t.Errorf("expected duplicate_client_id, got %q", serverErr.Error)
	}
	if s.ClientCount() != 1 {
		t.Errorf("expected the first client to remain, got %d clients", s.ClientCount())
	}
}

func TestInvalidHelloRejected(t *testing.T) {
	tests := []struct {
		name string
		msg  protocol.Message
	}{
		{"wrong type", protocol.Message{Type: "key/action", Payload: protocol.KeyAction{}}},
		{"missing id", protocol.Message{Type: protocol.TypeClientHello, Payload: protocol.ClientHello{Name: "Den"}}},
		{"missing name", protocol.Message{Type: protocol.TypeClientHello, Payload: protocol.ClientHello{ClientID: "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, url := startFeed(t, testConfig())
			conn := dial(t, url)

			if err := conn.WriteJSON(tt.msg); err != nil {
				t.Fatalf("write: %v", err)
			}
			msg := readMessage(t, conn)
			if msg.Type != protocol.TypeServerError {
				t.Fatalf("expected %s, got %s", protocol.TypeServerError, msg.Type)
			}
			if s.ClientCount() != 0 {
				t.Errorf("expected no registered clients, got %d", s.ClientCount())
			}
		})
	}
}

func TestFullQueueDrops(t *testing.T) {
	s := New(testConfig())

	// No writer goroutine drains this client
	s.clients["slow"] = &Client{ID: "slow", Name: "Slow", sendChan: make(chan interface{}, 1)}

	s.Broadcast(protocol.KeyAction{Kind: "press", Symbol: "UP"})
	s.Broadcast(protocol.KeyAction{Kind: "repeat", Symbol: "UP"})
	s.Broadcast(protocol.KeyAction{Kind: "release", Symbol: "UP"})

	stats := s.Stats()
	if stats.Sent != 1 {
		t.Errorf("expected 1 sent, got %d", stats.Sent)
	}
	if stats.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", stats.Dropped)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	s, url := startFeed(t, testConfig())
	conn := dial(t, url)
	hello(t, conn, "remote-1", "Porch")

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not unregistered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStopDisconnectsClients(t *testing.T) {
	s, url := startFeed(t, testConfig())
	conn := dial(t, url)
	hello(t, conn, "remote-1", "Garage")

	s.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close after Stop")
	}

	late := dial(t, url)
	late.WriteJSON(protocol.Message{
		Type:    protocol.TypeClientHello,
		Payload: protocol.ClientHello{ClientID: "late", Name: "Late"},
	})
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Error("expected new connections to be refused after Stop")
	}
}

func TestServeReturnsAfterStop(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := New(testConfig())
	done := make(chan error, 1)
	go func() { done <- s.Serve(listener) }()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"ephemeral port", func(c *Config) { c.Port = 0 }, false},
		{"negative port", func(c *Config) { c.Port = -1 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"empty name", func(c *Config) { c.Name = "" }, true},
		{"zero buffer", func(c *Config) { c.SendBuffer = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}
