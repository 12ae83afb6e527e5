package monitor

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/sink"
)

// Sentinel errors for monitor failures.
var (
	// ErrDeviceUnavailable means the sensor could not be opened, or failed
	// too many times in a row. Fatal for the session.
	ErrDeviceUnavailable = errors.New("monitor: device unavailable")

	// ErrTransientCapture is a single failed read. Retried by the loop.
	ErrTransientCapture = errors.New("monitor: transient capture error")

	// ErrArtifactWrite aliases the sink sentinel so callers need one import.
	ErrArtifactWrite = sink.ErrArtifactWrite

	// ErrCounterStore aliases the sink sentinel so callers need one import.
	ErrCounterStore = sink.ErrCounterStore

	// ErrNotRunning is returned when stopping a unit that never started.
	ErrNotRunning = errors.New("monitor: not running")
)

// Kind classifies a monitor error.
type Kind string

const (
	KindDeviceUnavailable Kind = "device_unavailable"
	KindTransientCapture  Kind = "transient_capture"
	KindArtifactWrite     Kind = "artifact_write"
	KindCounterStore      Kind = "counter_store"

	// KindRecord is a recorder failure outside the sink's own classes.
	KindRecord Kind = "event_record"
)

func (k Kind) sentinel() error {
	switch k {
	case KindDeviceUnavailable:
		return ErrDeviceUnavailable
	case KindTransientCapture:
		return ErrTransientCapture
	case KindArtifactWrite:
		return ErrArtifactWrite
	case KindCounterStore:
		return ErrCounterStore
	}
	return nil
}

// Error is a classified monitor failure.
type Error struct {
	Kind     Kind
	Modality proctor.Modality
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("monitor [%s]: %s: %v", e.Modality, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(kind Kind, modality proctor.Modality, err error) *Error {
	return &Error{Kind: kind, Modality: modality, Err: err}
}

// KindOf returns the kind of err, or "" when it is not a monitor error.
func KindOf(err error) Kind {
	var merr *Error
	if errors.As(err, &merr) {
		return merr.Kind
	}
	switch {
	case errors.Is(err, ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, ErrCounterStore):
		return KindCounterStore
	case errors.Is(err, ErrArtifactWrite):
		return KindArtifactWrite
	}
	return ""
}
