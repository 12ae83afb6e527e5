package sink

import (
	"errors"
	"fmt"
)

// Sentinel errors for sink failures.
var (
	// ErrArtifactWrite means the event artifact could not be persisted.
	// The event is still counted.
	ErrArtifactWrite = errors.New("sink: artifact write failed")

	// ErrCounterStore means the suspicion counter could not be updated.
	ErrCounterStore = errors.New("sink: counter store failed")
)

// ArtifactWriteError wraps a failed artifact write with its path.
type ArtifactWriteError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ArtifactWriteError) Error() string {
	return fmt.Sprintf("sink: write artifact %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ArtifactWriteError) Unwrap() error {
	return e.Err
}

// Is matches ErrArtifactWrite.
func (e *ArtifactWriteError) Is(target error) bool {
	return target == ErrArtifactWrite
}

// CounterStoreError wraps a failed counter update.
type CounterStoreError struct {
	Err error
}

// Error implements the error interface.
func (e *CounterStoreError) Error() string {
	return fmt.Sprintf("sink: increment counter: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *CounterStoreError) Unwrap() error {
	return e.Err
}

// Is matches ErrCounterStore.
func (e *CounterStoreError) Is(target error) bool {
	return target == ErrCounterStore
}
