// Package detection defines the face detector contract used by the visual
// monitor. Detectors are black boxes returning bounding boxes in pixels;
// OpenCV-backed implementations live in pkg/vision.
package detection

import (
	"fmt"
	"math"
)

// Box is a detected face in pixel coordinates.
type Box struct {
	X, Y       float64 // Top-left corner
	W, H       float64 // Width and height
	Confidence float64 // Detection confidence (0-1), 1 when the backend has none
}

// Center returns the center point of the box.
func (b Box) Center() (x, y float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Distance returns the Euclidean distance between two points.
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// Detector is the interface for face detection backends.
type Detector interface {
	// Detect finds faces in a JPEG image.
	Detect(jpeg []byte) ([]Box, error)

	// Name returns the backend name.
	Name() string

	// Close releases resources.
	Close() error
}

// Backend names a detector implementation.
type Backend string

const (
	BackendYuNet Backend = "yunet"
	BackendHaar  Backend = "haar"
	BackendMock  Backend = "mock"
)

// Config holds detector configuration.
type Config struct {
	Backend          Backend `yaml:"backend" json:"backend"`
	ModelPath        string  `yaml:"model_path" json:"model_path"`       // ONNX model or Haar cascade XML
	ConfidenceThresh float64 `yaml:"confidence" json:"confidence"`       // Minimum confidence (YuNet)
	InputWidth       int     `yaml:"input_width" json:"input_width"`     // Model input width
	InputHeight      int     `yaml:"input_height" json:"input_height"`   // Model input height
	MinNeighbors     int     `yaml:"min_neighbors" json:"min_neighbors"` // Haar cascade neighbours
	ScaleFactor      float64 `yaml:"scale_factor" json:"scale_factor"`   // Haar cascade pyramid step
	MinFaceSize      int     `yaml:"min_face_size" json:"min_face_size"` // Smallest face in pixels
}

// DefaultConfig returns production defaults for YuNet.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendYuNet,
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
		MinNeighbors:     5,
		ScaleFactor:      1.1,
		MinFaceSize:      30,
	}
}

// HaarConfig returns defaults for the frontal-face Haar cascade.
func HaarConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendHaar
	cfg.ModelPath = "models/haarcascade_frontalface_default.xml"
	return cfg
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendYuNet, BackendHaar:
		if c.ModelPath == "" {
			return fmt.Errorf("detector %s needs model_path", c.Backend)
		}
	case BackendMock:
	default:
		return fmt.Errorf("unknown detector backend %q", c.Backend)
	}
	if c.ConfidenceThresh < 0 || c.ConfidenceThresh > 1 {
		return fmt.Errorf("confidence must be 0-1, got %v", c.ConfidenceThresh)
	}
	if c.Backend == BackendHaar && c.ScaleFactor <= 1 {
		return fmt.Errorf("scale_factor must be > 1, got %v", c.ScaleFactor)
	}
	return nil
}
