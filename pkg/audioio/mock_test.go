package audioio

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"
)

func TestMockSource_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx := context.Background()

	// Start should succeed
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Starting again should be a no-op
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}

	// Stop should succeed
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Stopping again should be a no-op
	if err := src.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
}

func TestMockSource_Read(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	expectedSamples := cfg.BufferSize() * cfg.Channels
	if len(chunk.Samples) != expectedSamples {
		t.Errorf("Expected %d samples, got %d", expectedSamples, len(chunk.Samples))
	}

	if chunk.SampleRate != cfg.SampleRate {
		t.Errorf("Expected sample rate %d, got %d", cfg.SampleRate, chunk.SampleRate)
	}

	if chunk.Channels != cfg.Channels {
		t.Errorf("Expected %d channels, got %d", cfg.Channels, chunk.Channels)
	}
}

func TestMockSource_ReadBeforeStart(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil, WithoutPacing())
	defer src.Close()

	if _, err := src.Read(context.Background()); err != io.EOF {
		t.Errorf("Expected io.EOF before Start, got %v", err)
	}
}

func TestMockSource_SineWave(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond

	// Create source with 440Hz sine wave
	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5), WithoutPacing())
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	// A 0.5 amplitude sine has RMS 0.5/sqrt(2)
	want := 0.5 / math.Sqrt2
	if got := chunk.Level(); math.Abs(got-want) > 0.01 {
		t.Errorf("Sine RMS: got %.4f, want ~%.4f", got, want)
	}
}

func TestMockSource_Levels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond

	src := NewMockSource(cfg, nil, WithLevels(0.02, 0.05), WithoutPacing())
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	want := []float64{0.02, 0.05, 0.05}
	for i, w := range want {
		chunk, err := src.Read(ctx)
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if got := chunk.Level(); math.Abs(got-w) > 0.0005 {
			t.Errorf("Read %d: level got %.5f, want %.5f", i, got, w)
		}
	}
}

func TestMockSource_ReadErrors(t *testing.T) {
	errFlaky := errors.New("flaky mic")
	src := NewMockSource(DefaultConfig(), nil, WithReadErrors(errFlaky, 2), WithoutPacing())
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := src.Read(ctx); !errors.Is(err, errFlaky) {
			t.Fatalf("Read %d: expected flaky error, got %v", i, err)
		}
	}
	if _, err := src.Read(ctx); err != nil {
		t.Fatalf("Read after errors: %v", err)
	}
}

func TestMockSource_ExclusiveDevice(t *testing.T) {
	dev := NewMockDevice()
	cfg := DefaultConfig()

	a := NewMockSource(cfg, nil, WithDevice(dev))
	b := NewMockSource(cfg, nil, WithDevice(dev))
	defer a.Close()
	defer b.Close()

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := b.Start(ctx); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("second Start: expected ErrDeviceBusy, got %v", err)
	}

	a.Close()
	if dev.Held() {
		t.Fatal("device still held after Close")
	}
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start after release failed: %v", err)
	}
	if dev.Opens() != 2 {
		t.Errorf("Expected 2 opens, got %d", dev.Opens())
	}
}

func TestMockSource_Close(t *testing.T) {
	cfg := DefaultConfig()
	src := NewMockSource(cfg, nil)

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Close should succeed
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Start after close should fail
	if err := src.Start(ctx); err != io.ErrClosedPipe {
		t.Errorf("Expected ErrClosedPipe after close, got: %v", err)
	}

	// Closing again should be a no-op
	if err := src.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}

func TestMockSource_Stats(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond

	src := NewMockSource(cfg, nil, WithoutPacing())
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := src.Read(ctx); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}

	stats := src.Stats()

	if stats.ChunksRead != 3 {
		t.Errorf("Expected 3 chunks read, got %d", stats.ChunksRead)
	}

	if stats.Backend != "mock" {
		t.Errorf("Expected backend 'mock', got '%s'", stats.Backend)
	}

	if !stats.Running {
		t.Error("Expected Running=true")
	}
}

func TestNewSource_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer src.Close()

	if src.Name() != "mock" {
		t.Errorf("Expected mock backend, got %s", src.Name())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"zero channels", func(c *Config) { c.Channels = 0 }, true},
		{"zero buffer", func(c *Config) { c.BufferDuration = 0 }, true},
		{"unknown backend", func(c *Config) { c.Backend = "alsa" }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate: got err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}
