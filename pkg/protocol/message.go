// Package protocol defines the JSON messages exchanged over the control
// websocket, the event stream, and the stdout handshake of isolated monitor
// processes.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// MessageType identifies the type of message
type MessageType string

const (
	// Host → daemon control messages
	TypeBegin   MessageType = "begin"   // Start of a quiz attempt
	TypeEnd     MessageType = "end"     // Quiz completion or logout
	TypeStart   MessageType = "start"   // Start one monitor
	TypeStop    MessageType = "stop"    // Stop one monitor
	TypeRestart MessageType = "restart" // Restart one monitor
	TypeReset   MessageType = "reset"   // Reset the suspicion counter

	// Daemon → host messages
	TypeStatus  MessageType = "status"  // Monitor states and counter
	TypeCounter MessageType = "counter" // Suspicion count and percent
	TypeEvent   MessageType = "event"   // A recorded event
	TypeError   MessageType = "error"   // Request failed

	// Monitor process → controller (stdout, one message per line)
	TypeReady  MessageType = "ready"  // Device opened, loop starting
	TypeFailed MessageType = "failed" // Device could not be opened

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all messages
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"` // Echoed in replies
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}
	return &msg, nil
}

// =============================================================================
// Control Message Types
// =============================================================================

// ModalityData names the monitor a start/stop/restart applies to.
// An empty modality means both.
type ModalityData struct {
	Modality proctor.Modality `json:"modality,omitempty"`
}

// CounterData reports the suspicion count.
type CounterData struct {
	Count   int `json:"count"`
	Total   int `json:"total,omitempty"`   // Questions in the quiz
	Percent int `json:"percent,omitempty"` // round(100*count/total), capped at 100
}

// ErrorData describes a failed request.
type ErrorData struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// =============================================================================
// Monitor Process Message Types
// =============================================================================

// ReadyData is printed by a monitor process once its device is open.
type ReadyData struct {
	SessionID string           `json:"session_id"`
	Modality  proctor.Modality `json:"modality"`
	PID       int              `json:"pid"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
