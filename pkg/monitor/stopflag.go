package monitor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// StopFlag is a sentinel file whose presence asks a monitor process to stop.
// It lets a controller signal a child that cannot receive SIGTERM.
type StopFlag struct {
	path string
}

// NewStopFlag returns the flag for modality inside dir.
func NewStopFlag(dir string, modality proctor.Modality) *StopFlag {
	return &StopFlag{path: filepath.Join(dir, string(modality)+".stop")}
}

// Path returns the sentinel file path.
func (f *StopFlag) Path() string {
	return f.path
}

// Raise creates the sentinel file.
func (f *StopFlag) Raise() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(f.path, nil, 0644)
}

// Raised reports whether the sentinel file exists.
func (f *StopFlag) Raised() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Clear removes the sentinel file. A missing file is not an error.
func (f *StopFlag) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
