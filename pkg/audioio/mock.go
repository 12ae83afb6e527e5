package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockDevice models an exclusive input device shared by several mock
// sources. Only one started source may hold it at a time.
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

// MockSource is a mock audio source for testing.
// It generates synthetic audio: silence, a sine wave, or a scripted
// sequence of constant RMS levels.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool

	// Stats
	chunksRead  atomic.Int64
	samplesRead atomic.Int64

	// Synthetic audio generation
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
	levels    []float64
	paced     bool

	device     *MockDevice
	startErr   error
	readErr    error
	readErrors int
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithLevels scripts the RMS level of successive reads. Each read produces a
// square wave whose RMS equals the next level; the last level repeats.
func WithLevels(levels ...float64) MockSourceOption {
	return func(m *MockSource) {
		m.levels = append([]float64(nil), levels...)
	}
}

// WithoutPacing makes Read return immediately instead of waiting one buffer
// duration, so tests are not bound to wall-clock audio time.
func WithoutPacing() MockSourceOption {
	return func(m *MockSource) {
		m.paced = false
	}
}

// WithDevice makes the source hold d while started.
func WithDevice(d *MockDevice) MockSourceOption {
	return func(m *MockSource) {
		m.device = d
	}
}

// WithStartError makes Start fail with err.
func WithStartError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = err
	}
}

// WithReadErrors makes the next n reads fail with err. A negative n fails
// every read.
func WithReadErrors(err error, n int) MockSourceOption {
	return func(m *MockSource) {
		m.readErr = err
		m.readErrors = n
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		frequency: 0, // Silence by default
		amplitude: 0.5,
		paced:     true,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start opens the mock device.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}
	if m.startErr != nil {
		return m.startErr
	}
	if m.device != nil {
		if err := m.device.acquire(); err != nil {
			return err
		}
	}

	m.running = true

	m.logger.Debug("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
		"levels", len(m.levels),
	)

	return nil
}

func (m *MockSource) generateChunk(n int64) AudioChunk {
	bufferSize := m.cfg.BufferSize()
	samples := make([]int16, bufferSize*m.cfg.Channels)

	switch {
	case len(m.levels) > 0:
		idx := int(n)
		if idx >= len(m.levels) {
			idx = len(m.levels) - 1
		}
		v := m.levels[idx] * fullScale
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		level := int16(v)
		for i := range samples {
			// Alternating sign keeps the mean at zero and the RMS at level.
			if (i/m.cfg.Channels)%2 == 0 {
				samples[i] = level
			} else {
				samples[i] = -level
			}
		}

	case m.frequency > 0:
		for i := 0; i < bufferSize; i++ {
			sample := m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate))
			sampleInt := int16(sample * 32767)

			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = sampleInt
			}

			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}
	// else: samples are already zero (silence)

	return AudioChunk{
		Samples:    samples,
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	}
}

// Stop halts audio generation and releases the device.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false
	if m.device != nil {
		m.device.release()
	}

	m.logger.Debug("mock audio source stopped")

	return nil
}

// Read produces the next audio chunk.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	if m.paced {
		select {
		case <-ctx.Done():
			return AudioChunk{}, ctx.Err()
		case <-time.After(m.cfg.BufferDuration):
		}
	} else if err := ctx.Err(); err != nil {
		return AudioChunk{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return AudioChunk{}, io.EOF
	}
	if m.readErr != nil && m.readErrors != 0 {
		if m.readErrors > 0 {
			m.readErrors--
		}
		return AudioChunk{}, m.readErr
	}

	chunk := m.generateChunk(m.chunksRead.Load())
	m.chunksRead.Add(1)
	m.samplesRead.Add(int64(len(chunk.Samples)))
	return chunk, nil
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		ChunksRead:  m.chunksRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Overruns:    0,
		Running:     running,
		Backend:     "mock",
	}
}

// Ensure MockSource implements SourceWithStats.
var _ SourceWithStats = (*MockSource)(nil)
