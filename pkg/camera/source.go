package camera

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by frame sources.
var (
	// ErrDeviceBusy is returned by Open when another source holds the device.
	ErrDeviceBusy = errors.New("camera: device busy")

	// ErrClosed is returned when capturing from a closed source.
	ErrClosed = errors.New("camera: source closed")
)

// Frame is a single captured image.
type Frame struct {
	// JPEG is the encoded frame.
	JPEG []byte

	// Width and Height are the frame dimensions in pixels.
	Width, Height int

	// CapturedAt is when the frame was grabbed from the device.
	CapturedAt time.Time
}

// Source captures frames from a webcam or stream.
type Source interface {
	// Open acquires the device. Errors here mean the device is unavailable.
	Open(ctx context.Context) error

	// Capture grabs the next frame. It blocks for at most one frame period.
	Capture(ctx context.Context) (Frame, error)

	// Name returns the backend name (e.g., "gocv", "mock").
	Name() string

	// Close releases the device. It is safe to call Close multiple times,
	// including concurrently with a blocked Capture.
	Close() error
}
