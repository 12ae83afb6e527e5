package audioio

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		expect  float64
	}{
		{"empty", nil, 0},
		{"silence", make([]int16, 100), 0},
		{"half scale square", []int16{16384, -16384, 16384, -16384}, 0.5},
		{"single full scale", []int16{-32768}, 1.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := RMS(tc.samples)
			if math.Abs(got-tc.expect) > 1e-9 {
				t.Errorf("RMS: got %.6f, want %.6f", got, tc.expect)
			}
		})
	}
}

func TestRecord_CollectsWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 16000
	cfg.BufferDuration = 10 * time.Millisecond

	src := NewMockSource(cfg, nil, WithLevels(0.1), WithoutPacing())
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := Record(ctx, src, 45*time.Millisecond)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	// 45ms needs five 10ms buffers
	if len(chunk.Samples) != 5*cfg.BufferSize() {
		t.Errorf("Expected %d samples, got %d", 5*cfg.BufferSize(), len(chunk.Samples))
	}
	if chunk.SampleRate != cfg.SampleRate {
		t.Errorf("Expected sample rate %d, got %d", cfg.SampleRate, chunk.SampleRate)
	}
	if math.Abs(chunk.Level()-0.1) > 0.001 {
		t.Errorf("Expected level ~0.1, got %.4f", chunk.Level())
	}
}

func TestRecord_Cancelled(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil, WithoutPacing())
	defer src.Close()

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Record(ctx, src, time.Second); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
