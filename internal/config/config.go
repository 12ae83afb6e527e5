// Package config loads the proctor configuration: a YAML file layered over
// defaults, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-proctor/pkg/audioio"
	"github.com/teslashibe/go-proctor/pkg/camera"
	"github.com/teslashibe/go-proctor/pkg/counter"
	"github.com/teslashibe/go-proctor/pkg/detection"
	"github.com/teslashibe/go-proctor/pkg/monitor"
)

// Environment overrides.
const (
	EnvDataDir   = "PROCTOR_DATA_DIR"
	EnvLogLevel  = "PROCTOR_LOG_LEVEL"
	EnvAddr      = "PROCTOR_ADDR"
	EnvIsolation = "PROCTOR_ISOLATION"
)

// Isolation selects how a monitor session is run.
type Isolation string

const (
	IsolationGoroutine Isolation = "goroutine"
	IsolationProcess   Isolation = "process"
)

// Config is the complete proctor configuration.
type Config struct {
	// DataDir anchors every relative path below.
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	Server    ServerConfig    `yaml:"server"`
	Counter   counter.Config  `yaml:"counter"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Visual    VisualConfig    `yaml:"visual"`
	Audio     AudioConfig     `yaml:"audio"`
}

// ServerConfig configures the control server.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// Questions is the quiz length used for suspicion_percent.
	Questions int `yaml:"questions"`

	// History is how many events /api/events remembers.
	History int `yaml:"history"`
}

// ArtifactsConfig configures evidence storage.
type ArtifactsConfig struct {
	ImageDir string `yaml:"image_dir"`
	AudioDir string `yaml:"audio_dir"`

	// Annotate draws detection boxes on visual artifacts (needs OpenCV).
	Annotate bool `yaml:"annotate"`

	// Ledger is an SQLite database recording every event. Empty disables it.
	Ledger string `yaml:"ledger"`
}

// LifecycleConfig configures monitor start and stop.
type LifecycleConfig struct {
	Isolation    Isolation     `yaml:"isolation"`
	Grace        time.Duration `yaml:"grace"`
	KillTimeout  time.Duration `yaml:"kill_timeout"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
	StopDir      string        `yaml:"stop_dir"`

	// FailOnCounterError ends a session when the counter cannot be updated.
	FailOnCounterError bool `yaml:"fail_on_counter_error"`
}

// VisualConfig configures the face monitor.
type VisualConfig struct {
	Enabled bool `yaml:"enabled"`

	// Backend is the camera backend: "gocv" or "mock".
	Backend string `yaml:"backend"`

	// Preset sets the camera resolution by name (480p, 720p, 1080p).
	Preset string `yaml:"preset"`

	Camera   camera.Config    `yaml:"camera"`
	Detector detection.Config `yaml:"detector"`

	Loop monitor.VisualConfig `yaml:",inline"`
}

// AudioConfig configures the loudness monitor.
type AudioConfig struct {
	Enabled bool           `yaml:"enabled"`
	Source  audioio.Config `yaml:"source"`

	Loop monitor.AudioConfig `yaml:",inline"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		DataDir:  ".",
		LogLevel: "info",
		Server: ServerConfig{
			Addr:    ":8090",
			History: 500,
		},
		Counter: counter.DefaultConfig(),
		Artifacts: ArtifactsConfig{
			ImageDir: "captures",
			AudioDir: "audio_captures",
		},
		Lifecycle: LifecycleConfig{
			Isolation:          IsolationGoroutine,
			Grace:              time.Second,
			KillTimeout:        5 * time.Second,
			ReadyTimeout:       10 * time.Second,
			StopDir:            "run",
			FailOnCounterError: true,
		},
		Visual: VisualConfig{
			Enabled:  true,
			Backend:  "gocv",
			Camera:   camera.DefaultConfig(),
			Detector: detection.DefaultConfig(),
			Loop:     monitor.DefaultVisualConfig(),
		},
		Audio: AudioConfig{
			Enabled: true,
			Source:  audioio.DefaultConfig(),
			Loop:    monitor.DefaultAudioConfig(),
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	if err := cfg.applyPreset(); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates it.
// Environment overrides are not applied.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyPreset(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// applyPreset copies the named camera preset's resolution.
func (c *Config) applyPreset() error {
	if c.Visual.Preset == "" {
		return nil
	}
	p := camera.GetPreset(c.Visual.Preset)
	if p == nil {
		return fmt.Errorf("config: unknown camera preset %q; valid values: %v", c.Visual.Preset, camera.PresetNames())
	}
	c.Visual.Camera.Width, c.Visual.Camera.Height = p.Width, p.Height
	return nil
}

// ApplyEnv overrides fields from PROCTOR_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvIsolation); v != "" {
		c.Lifecycle.Isolation = Isolation(v)
	}
}

// Validate checks that the configuration is coherent.
// It returns a joined error listing all validation failures found.
func (c *Config) Validate() error {
	var errs []error

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", c.LogLevel))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.Questions < 0 {
		errs = append(errs, fmt.Errorf("server.questions must not be negative, got %d", c.Server.Questions))
	}
	if err := c.Counter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("counter: %w", err))
	}
	if c.Artifacts.ImageDir == "" || c.Artifacts.AudioDir == "" {
		errs = append(errs, errors.New("artifacts.image_dir and artifacts.audio_dir are required"))
	}

	switch c.Lifecycle.Isolation {
	case IsolationGoroutine, IsolationProcess:
	default:
		errs = append(errs, fmt.Errorf("lifecycle.isolation %q is invalid; valid values: goroutine, process", c.Lifecycle.Isolation))
	}
	if c.Lifecycle.Isolation == IsolationProcess && c.Counter.Backend == counter.BackendMemory {
		errs = append(errs, errors.New("lifecycle.isolation process needs a shared counter backend (file or sqlite)"))
	}
	if c.Lifecycle.Grace <= 0 || c.Lifecycle.KillTimeout <= 0 || c.Lifecycle.ReadyTimeout <= 0 {
		errs = append(errs, errors.New("lifecycle timeouts must be positive"))
	}

	if !c.Visual.Enabled && !c.Audio.Enabled {
		errs = append(errs, errors.New("at least one of visual and audio must be enabled"))
	}
	if c.Visual.Enabled {
		switch c.Visual.Backend {
		case "gocv", "mock":
		default:
			errs = append(errs, fmt.Errorf("visual.backend %q is invalid; valid values: gocv, mock", c.Visual.Backend))
		}
		for _, msg := range c.Visual.Camera.Validate() {
			errs = append(errs, fmt.Errorf("visual.camera: %s", msg))
		}
		if err := c.Visual.Detector.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("visual.detector: %w", err))
		}
		if err := c.Visual.Loop.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("visual: %w", err))
		}
	}
	if c.Audio.Enabled {
		if err := c.Audio.Source.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("audio.source: %w", err))
		}
		if err := c.Audio.Loop.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("audio: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Path resolves p against DataDir. Absolute paths are returned unchanged.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// CounterConfig returns the counter config with its path resolved.
func (c *Config) CounterConfig() counter.Config {
	cc := c.Counter
	cc.Path = c.Path(cc.Path)
	return cc
}
