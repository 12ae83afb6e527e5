// Package vision binds the visual monitor to OpenCV through gocv: webcam
// capture, YuNet and Haar face detectors, and box annotation for artifacts.
//
// OpenCV backends are compiled with -tags opencv. Without the tag the
// factories still serve the mock backends and return ErrNotCompiled for
// the rest, so the rest of the module builds without OpenCV installed.
package vision

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-proctor/pkg/camera"
	"github.com/teslashibe/go-proctor/pkg/detection"
)

// ErrNotCompiled is returned for OpenCV backends in builds without -tags opencv.
var ErrNotCompiled = errors.New("vision: OpenCV support not compiled in (build with -tags opencv)")

// Camera backends.
const (
	CameraGoCV = "gocv"
	CameraMock = "mock"
)

// Annotator draws detection boxes onto a JPEG frame.
type Annotator interface {
	Annotate(jpeg []byte, boxes []detection.Box) ([]byte, error)
}

// NewCamera creates a frame source for the named backend.
func NewCamera(backend string, cfg camera.Config, logger *slog.Logger) (camera.Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %v", errs)
	}
	if logger == nil {
		logger = slog.Default()
	}
	switch backend {
	case CameraMock:
		return camera.NewMockSource(cfg), nil
	case "", CameraGoCV:
		return newGoCVCamera(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported camera backend: %s", backend)
	}
}

// NewDetector creates a face detector for cfg.Backend.
func NewDetector(cfg detection.Config, logger *slog.Logger) (detection.Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case detection.BackendMock:
		return detection.NewMockDetector(), nil
	case detection.BackendYuNet:
		return newYuNet(cfg, logger)
	case detection.BackendHaar:
		return newHaar(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported detector backend: %s", cfg.Backend)
	}
}

// NewAnnotator returns the OpenCV box annotator.
func NewAnnotator() (Annotator, error) {
	return newAnnotator()
}

// Available reports whether OpenCV backends are compiled in.
func Available() bool {
	return openCVAvailable
}
