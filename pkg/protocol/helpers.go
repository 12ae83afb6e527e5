package protocol

import (
	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewEventMessage wraps a recorded event
func NewEventMessage(ev proctor.Event) (*Message, error) {
	return NewMessage(TypeEvent, ev)
}

// NewCounterMessage creates a counter report
func NewCounterMessage(count, total, percent int) (*Message, error) {
	return NewMessage(TypeCounter, CounterData{
		Count:   count,
		Total:   total,
		Percent: percent,
	})
}

// NewErrorMessage creates an error reply
func NewErrorMessage(id, kind string, err error) *Message {
	msg, _ := NewMessage(TypeError, ErrorData{Message: err.Error(), Kind: kind})
	msg.ID = id
	return msg
}

// NewReadyMessage creates a monitor process readiness line
func NewReadyMessage(sessionID string, modality proctor.Modality, pid int) (*Message, error) {
	return NewMessage(TypeReady, ReadyData{
		SessionID: sessionID,
		Modality:  modality,
		PID:       pid,
	})
}

// NewFailedMessage creates a monitor process failure line
func NewFailedMessage(kind string, err error) (*Message, error) {
	return NewMessage(TypeFailed, ErrorData{Message: err.Error(), Kind: kind})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: 0, // Will be set by NewMessage
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// Reply returns a copy of msg addressed to the request id
func (m *Message) Reply(id string) *Message {
	out := *m
	out.ID = id
	return &out
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetEvent extracts an event from a message
func (m *Message) GetEvent() (*proctor.Event, error) {
	var ev proctor.Event
	if err := m.ParseData(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// GetModality extracts the target modality from a control message
func (m *Message) GetModality() (proctor.Modality, error) {
	var data ModalityData
	if err := m.ParseData(&data); err != nil {
		return "", err
	}
	return data.Modality, nil
}

// GetCounterData extracts counter data from a message
func (m *Message) GetCounterData() (*CounterData, error) {
	var data CounterData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetReadyData extracts readiness data from a message
func (m *Message) GetReadyData() (*ReadyData, error) {
	var data ReadyData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
