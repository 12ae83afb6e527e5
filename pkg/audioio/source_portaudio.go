//go:build portaudio

package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

const portAudioAvailable = true

// PortAudioSource captures audio using PortAudio.
// Reads are synchronous: each Read blocks for one buffer duration.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buffer  []int16
	running bool
	closed  bool

	// Stats
	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// newPortAudioSource creates a new PortAudio source. The device is opened by Start.
func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return &PortAudioSource{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Start initializes PortAudio and opens the input stream.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	buffer := make([]int16, s.cfg.BufferSize()*s.cfg.Channels)
	stream, err := s.openStream(buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	s.stream = stream
	s.buffer = buffer
	s.running = true

	s.logger.Info("PortAudio source started",
		"device", s.deviceLabel(),
		"sample_rate", s.cfg.SampleRate,
	)

	return nil
}

func (s *PortAudioSource) openStream(buffer []int16) (*portaudio.Stream, error) {
	if s.cfg.Device == "" || s.cfg.Device == "default" {
		return portaudio.OpenDefaultStream(
			s.cfg.Channels, // input channels
			0,              // output channels (none)
			float64(s.cfg.SampleRate),
			s.cfg.BufferSize(),
			buffer,
		)
	}

	device, err := findInputDevice(s.cfg.Device)
	if err != nil {
		return nil, err
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: s.cfg.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(s.cfg.SampleRate),
		FramesPerBuffer: s.cfg.BufferSize(),
	}
	return portaudio.OpenStream(params, buffer)
}

// findInputDevice finds a PortAudio input device by name.
func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("input device not found: %s", name)
}

func (s *PortAudioSource) deviceLabel() string {
	if s.cfg.Device == "" {
		return "default"
	}
	return s.cfg.Device
}

// Read blocks until one buffer has been captured.
// Input overflows between reads are counted and the buffer is returned anyway.
func (s *PortAudioSource) Read(ctx context.Context) (AudioChunk, error) {
	if err := ctx.Err(); err != nil {
		return AudioChunk{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.stream == nil {
		return AudioChunk{}, io.EOF
	}

	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return AudioChunk{}, fmt.Errorf("portaudio read: %w", err)
		}
		s.overruns.Add(1)
	}

	samples := make([]int16, len(s.buffer))
	copy(samples, s.buffer)

	s.chunksRead.Add(1)
	s.samplesRead.Add(int64(len(samples)))

	return AudioChunk{
		Samples:    samples,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
	}, nil
}

// Stop closes the stream and releases the device.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	var errs []error
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop stream: %w", err))
		}
		if err := s.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
		s.stream = nil
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminate PortAudio: %w", err))
	}

	s.logger.Info("PortAudio source stopped", "device", s.deviceLabel())
	return errors.Join(errs...)
}

// Config returns the audio configuration.
func (s *PortAudioSource) Config() Config {
	return s.cfg
}

// Name returns "portaudio".
func (s *PortAudioSource) Name() string {
	return "portaudio"
}

// Close releases resources.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns source statistics.
func (s *PortAudioSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     "portaudio",
	}
}

var _ SourceWithStats = (*PortAudioSource)(nil)
