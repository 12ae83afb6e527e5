package camera

import (
	"context"
	"errors"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Fatalf("DefaultConfig invalid: %v", errs)
	}
	if cfg.Width != 1280 || cfg.Height != 720 {
		t.Errorf("Expected 1280x720, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errs   int
	}{
		{"valid", func(c *Config) {}, 0},
		{"empty device", func(c *Config) { c.Device = "" }, 1},
		{"tiny frame", func(c *Config) { c.Width = 10; c.Height = 10 }, 2},
		{"bad quality", func(c *Config) { c.Quality = 0 }, 1},
		{"negative fps", func(c *Config) { c.Framerate = -1 }, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if got := len(cfg.Validate()); got != tc.errs {
				t.Errorf("Validate: got %d errors, want %d (%v)", got, tc.errs, cfg.Validate())
			}
		})
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("preset %q missing", name)
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("preset %q invalid: %v", name, errs)
		}
	}
	if GetPreset("8k") != nil {
		t.Error("unknown preset should be nil")
	}
}

func TestScaleToReference(t *testing.T) {
	tests := []struct {
		cfg  Config
		in   float64
		want float64
	}{
		{HD720Config(), 10, 10},
		{HD1080Config(), 10, 15},
		{SD480Config(), 10, 5},
	}
	for _, tc := range tests {
		if got := tc.cfg.ScaleToReference(tc.in); got != tc.want {
			t.Errorf("ScaleToReference(%dx%d): got %v, want %v", tc.cfg.Width, tc.cfg.Height, got, tc.want)
		}
	}
}

func TestMockSource_Capture(t *testing.T) {
	src := NewMockSource(SD480Config())
	defer src.Close()

	ctx := context.Background()
	if _, err := src.Capture(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("Capture before Open: expected ErrClosed, got %v", err)
	}
	if err := src.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	frame, err := src.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if frame.Width != 640 || frame.Height != 480 {
		t.Errorf("Expected 640x480, got %dx%d", frame.Width, frame.Height)
	}
	if len(frame.JPEG) < 2 || frame.JPEG[0] != 0xFF || frame.JPEG[1] != 0xD8 {
		t.Error("Expected a JPEG payload")
	}
}

func TestMockSource_ExclusiveDevice(t *testing.T) {
	dev := NewMockDevice()
	a := NewMockSource(DefaultConfig(), WithMockDevice(dev))
	b := NewMockSource(DefaultConfig(), WithMockDevice(dev))

	ctx := context.Background()
	if err := a.Open(ctx); err != nil {
		t.Fatalf("Open a: %v", err)
	}
	if err := b.Open(ctx); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("Open b: expected ErrDeviceBusy, got %v", err)
	}
	a.Close()
	a.Close()
	if err := b.Open(ctx); err != nil {
		t.Fatalf("Open b after release: %v", err)
	}
	b.Close()
	if dev.Held() {
		t.Error("device still held")
	}
}
