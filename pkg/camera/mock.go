package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"time"
)

// MockDevice models an exclusive webcam shared by several mock sources.
type MockDevice struct {
	mu    sync.Mutex
	held  bool
	opens atomic.Int64
}

// NewMockDevice creates an unheld mock device.
func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

func (d *MockDevice) acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.held {
		return ErrDeviceBusy
	}
	d.held = true
	d.opens.Add(1)
	return nil
}

func (d *MockDevice) release() {
	d.mu.Lock()
	d.held = false
	d.mu.Unlock()
}

// Held reports whether a source currently holds the device.
func (d *MockDevice) Held() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.held
}

// Opens returns how many times the device was successfully opened.
func (d *MockDevice) Opens() int64 {
	return d.opens.Load()
}

// MockSource produces blank frames for tests.
type MockSource struct {
	cfg Config

	mu       sync.Mutex
	open     bool
	closed   bool
	frame    []byte
	interval time.Duration

	device        *MockDevice
	openErr       error
	captureErr    error
	captureErrors int

	captured atomic.Int64
}

// MockOption configures a MockSource.
type MockOption func(*MockSource)

// WithMockDevice makes the source hold d while open.
func WithMockDevice(d *MockDevice) MockOption {
	return func(m *MockSource) { m.device = d }
}

// WithOpenError makes Open fail with err.
func WithOpenError(err error) MockOption {
	return func(m *MockSource) { m.openErr = err }
}

// WithCaptureErrors makes the next n captures fail with err.
// A negative n fails every capture.
func WithCaptureErrors(err error, n int) MockOption {
	return func(m *MockSource) {
		m.captureErr = err
		m.captureErrors = n
	}
}

// WithFrameInterval paces Capture like a real device running at 1/d FPS.
func WithFrameInterval(d time.Duration) MockOption {
	return func(m *MockSource) { m.interval = d }
}

// NewMockSource creates a mock frame source with cfg's dimensions.
func NewMockSource(cfg Config, opts ...MockOption) *MockSource {
	m := &MockSource{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	m.frame = blankJPEG(cfg.Width, cfg.Height)
	return m
}

// Open acquires the mock device.
func (m *MockSource) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.open {
		return nil
	}
	if m.openErr != nil {
		return m.openErr
	}
	if m.device != nil {
		if err := m.device.acquire(); err != nil {
			return err
		}
	}
	m.open = true
	return nil
}

// Capture returns a blank frame.
func (m *MockSource) Capture(ctx context.Context) (Frame, error) {
	if m.interval > 0 {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-time.After(m.interval):
		}
	} else if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return Frame{}, ErrClosed
	}
	if m.captureErr != nil && m.captureErrors != 0 {
		if m.captureErrors > 0 {
			m.captureErrors--
		}
		return Frame{}, m.captureErr
	}

	m.captured.Add(1)
	return Frame{
		JPEG:       m.frame,
		Width:      m.cfg.Width,
		Height:     m.cfg.Height,
		CapturedAt: time.Now(),
	}, nil
}

// Captured returns the number of frames delivered.
func (m *MockSource) Captured() int64 {
	return m.captured.Load()
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases the mock device.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if m.open && m.device != nil {
		m.device.release()
	}
	m.open = false
	return nil
}

func blankJPEG(w, h int) []byte {
	if w <= 0 || h <= 0 {
		w, h = 16, 16
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = color.Gray{Y: 128}.Y
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 50}); err != nil {
		return nil
	}
	return buf.Bytes()
}

var _ Source = (*MockSource)(nil)
