// ABOUTME: Event feed message type definitions
// ABOUTME: JSON envelope plus the handshake, key action and error payloads
package protocol

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is sent in both hello messages
const ProtocolVersion = 1

// Message types
const (
	TypeClientHello = "client/hello"
	TypeServerHello = "server/hello"
	TypeKeyAction   = "key/action"
	TypeServerError = "server/error"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID   string `json:"server_id"`
	Name       string `json:"name"`
	Version    int    `json:"version"`
	WindowSize int    `json:"window_size"`
	SampleRate int    `json:"sample_rate"`
}

// KeyAction reports one press, repeat or release from the analysis loop
type KeyAction struct {
	Seq       uint64  `json:"seq"`
	Kind      string  `json:"kind"`   // "press", "repeat" or "release"
	Symbol    string  `json:"symbol"` // e.g. "LEFT", "CONFIRM"
	AtUnixMs  int64   `json:"at_unix_ms"`
	Frequency float64 `json:"frequency,omitempty"`
	Clarity   float64 `json:"clarity,omitempty"`
}

// ServerError is sent before the server closes a connection it rejects
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DecodePayload converts a generic payload into v
func DecodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}
