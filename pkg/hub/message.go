// Package hub fans proctoring events out to websocket subscribers and
// keeps the most recent ones for late readers.
package hub

import "github.com/teslashibe/go-proctor/pkg/protocol"

// Message is a protocol message encoded once and shared by every client
// it is queued for.
type Message struct {
	Kind protocol.MessageType
	Data []byte
}

// Encode serializes m for delivery.
func Encode(m *protocol.Message) (Message, error) {
	data, err := m.Bytes()
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: m.Type, Data: data}, nil
}

// RawMessage wraps pre-encoded JSON.
func RawMessage(data []byte) Message {
	return Message{Data: data}
}
