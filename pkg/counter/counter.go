// Package counter implements the suspicion counter shared by the proctoring
// monitors and the quiz session.
//
// The counter is the only state both monitors write. Every backend makes
// Increment a single critical section, and the file and SQLite backends
// keep it safe across processes as well as goroutines.
package counter

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// ErrClosed is returned by operations on a closed counter.
var ErrClosed = errors.New("counter: closed")

// Counter is a monotonically increasing suspicion count.
type Counter interface {
	// Increment adds one and returns the new value.
	Increment(ctx context.Context) (int, error)

	// Read returns the current value.
	Read(ctx context.Context) (int, error)

	// Reset sets the value to zero. Only called at the start of an attempt.
	Reset(ctx context.Context) error
}

// Ledger keeps a history of emitted events.
type Ledger interface {
	Append(ctx context.Context, ev proctor.Event) error
	Recent(ctx context.Context, limit int) ([]proctor.Event, error)
}

// Backend names a counter implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Config selects and configures the counter backend.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`
	Path    string  `yaml:"path" json:"path"`
}

// DefaultConfig returns a file counter at suspect_count.json.
func DefaultConfig() Config {
	return Config{
		Backend: BackendFile,
		Path:    "suspect_count.json",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("counter backend %s needs a path", c.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown counter backend %q", c.Backend)
	}
	return nil
}

// Open creates the configured counter. The returned closer releases any
// handles the backend holds.
func Open(cfg Config) (Counter, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	switch cfg.Backend {
	case BackendSQLite:
		c, err := NewSQLiteCounter(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case BackendMemory:
		return NewMemoryCounter(), func() error { return nil }, nil
	default:
		c, err := NewFileCounter(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	}
}

// Percent converts a count into the suspicion percentage shown at the end of
// a quiz: round(100*count/total) capped at 100, or 0 when total <= 0.
func Percent(count, total int) int {
	if total <= 0 || count <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(count) / float64(total)))
	return min(p, 100)
}
