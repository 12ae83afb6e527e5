package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-proctor/pkg/counter"
	"github.com/teslashibe/go-proctor/pkg/proctor"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFromReader(t *testing.T) {
	yml := `
data_dir: /var/lib/proctor
log_level: debug
server:
  addr: ":9000"
  questions: 20
counter:
  backend: sqlite
  path: proctor.db
lifecycle:
  isolation: process
  grace: 2s
visual:
  backend: mock
  camera:
    width: 640
    height: 480
  detector:
    backend: mock
  classifier:
    policy: smoothed
    movement_threshold: 12
    window: 5
  snapshot_interval: 0s
audio:
  source:
    backend: mock
  calibration:
    window: 2s
    multiplier: 2
  sample_interval: 250ms
`
	cfg, err := LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"log level", cfg.LogLevel, "debug"},
		{"addr", cfg.Server.Addr, ":9000"},
		{"questions", cfg.Server.Questions, 20},
		{"counter backend", cfg.Counter.Backend, counter.BackendSQLite},
		{"counter path", cfg.CounterConfig().Path, "/var/lib/proctor/proctor.db"},
		{"isolation", cfg.Lifecycle.Isolation, IsolationProcess},
		{"grace", cfg.Lifecycle.Grace, 2 * time.Second},
		{"kill timeout default", cfg.Lifecycle.KillTimeout, 5 * time.Second},
		{"camera width", cfg.Visual.Camera.Width, 640},
		{"policy", cfg.Visual.Loop.Classifier.Policy, proctor.PolicySmoothed},
		{"threshold", cfg.Visual.Loop.Classifier.MovementThreshold, 12.0},
		{"window", cfg.Visual.Loop.Classifier.Window, 5},
		{"snapshot", cfg.Visual.Loop.SnapshotInterval, time.Duration(0)},
		{"calibration window", cfg.Audio.Loop.Calibration.Window, 2 * time.Second},
		{"calibration chunk default", cfg.Audio.Loop.Calibration.Chunk, time.Second},
		{"multiplier", cfg.Audio.Loop.Calibration.Multiplier, 2.0},
		{"sample interval", cfg.Audio.Loop.SampleInterval, 250 * time.Millisecond},
		{"image dir", cfg.Path(cfg.Artifacts.ImageDir), "/var/lib/proctor/captures"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}
}

func TestLoadFromReader_Empty(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty config: %v", err)
	}
	if cfg.Server.Addr != ":8090" {
		t.Errorf("Expected default addr, got %s", cfg.Server.Addr)
	}
}

func TestLoadFromReader_CameraPreset(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("visual:\n  preset: 480p\n"))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if cfg.Visual.Camera.Width != 640 || cfg.Visual.Camera.Height != 480 {
		t.Errorf("Expected 640x480, got %dx%d", cfg.Visual.Camera.Width, cfg.Visual.Camera.Height)
	}
}

func TestLoadFromReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yml     string
		wantErr string
	}{
		{"unknown field", "colour: blue\n", "colour"},
		{"bad level", "log_level: loud\n", "log_level"},
		{"bad isolation", "lifecycle:\n  isolation: thread\n", "lifecycle.isolation"},
		{"bad counter", "counter:\n  backend: redis\n", "counter"},
		{"nothing enabled", "visual:\n  enabled: false\naudio:\n  enabled: false\n", "at least one"},
		{"bad policy", "visual:\n  classifier:\n    policy: wobbly\n", "visual"},
		{"bad preset", "visual:\n  preset: 8k\n", "camera preset"},
		{"shared counter", "counter:\n  backend: memory\nlifecycle:\n  isolation: process\n", "shared counter"},
		{"bad calibration", "audio:\n  calibration:\n    window: 0s\n", "calibration window"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tc.yml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	cfg.Server.Addr = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"log_level", "server.addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proctor.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":7000\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvAddr, "127.0.0.1:7100")
	t.Setenv(EnvIsolation, "process")
	t.Setenv(EnvDataDir, "/srv/proctor")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:7100" {
		t.Errorf("addr: got %s", cfg.Server.Addr)
	}
	if cfg.Lifecycle.Isolation != IsolationProcess {
		t.Errorf("isolation: got %s", cfg.Lifecycle.Isolation)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level: got %s", cfg.LogLevel)
	}
	if got := cfg.Path("run"); got != "/srv/proctor/run" {
		t.Errorf("path: got %s", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
