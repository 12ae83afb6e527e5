package detection

import (
	"errors"
	"sync"
)

// ErrDetectorClosed is returned by Detect after Close.
var ErrDetectorClosed = errors.New("detection: detector closed")

// MockDetector replays a scripted sequence of detections.
// Once the script is exhausted the last entry repeats.
type MockDetector struct {
	mu     sync.Mutex
	script [][]Box
	errs   map[int]error
	calls  int
	closed bool
}

// NewMockDetector creates a detector returning each frames entry in turn.
func NewMockDetector(frames ...[]Box) *MockDetector {
	return &MockDetector{script: frames, errs: map[int]error{}}
}

// FailAt makes the call with index i (0-based) return err.
func (m *MockDetector) FailAt(i int, err error) *MockDetector {
	m.mu.Lock()
	m.errs[i] = err
	m.mu.Unlock()
	return m
}

// Detect returns the next scripted set of boxes.
func (m *MockDetector) Detect(jpeg []byte) ([]Box, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrDetectorClosed
	}
	i := m.calls
	m.calls++
	if err, ok := m.errs[i]; ok {
		return nil, err
	}
	if len(m.script) == 0 {
		return nil, nil
	}
	if i >= len(m.script) {
		i = len(m.script) - 1
	}
	out := make([]Box, len(m.script[i]))
	copy(out, m.script[i])
	return out, nil
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Name returns "mock".
func (m *MockDetector) Name() string {
	return "mock"
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// FaceAt returns a w x h box centered on (cx, cy).
func FaceAt(cx, cy, w, h float64) Box {
	return Box{X: cx - w/2, Y: cy - h/2, W: w, H: h, Confidence: 1}
}

var _ Detector = (*MockDetector)(nil)
