package proctor

import (
	"fmt"

	"github.com/teslashibe/go-proctor/pkg/detection"
)

// MovementPolicy selects how displacement is compared to the threshold.
type MovementPolicy string

const (
	// PolicyFixed compares raw pixel displacement to MovementThreshold.
	PolicyFixed MovementPolicy = "fixed"
	// PolicyNormalized divides displacement by the face width and compares
	// it to NormalizedThreshold, so distance to the camera does not matter.
	PolicyNormalized MovementPolicy = "normalized"
	// PolicySmoothed compares the mean of the displacement window to
	// MovementThreshold.
	PolicySmoothed MovementPolicy = "smoothed"
)

// FaceConfig configures a FaceClassifier.
type FaceConfig struct {
	Policy              MovementPolicy `yaml:"policy" json:"policy"`
	MovementThreshold   float64        `yaml:"movement_threshold" json:"movement_threshold"`     // pixels
	NormalizedThreshold float64        `yaml:"normalized_threshold" json:"normalized_threshold"` // face widths
	Window              int            `yaml:"window" json:"window"`                             // displacement history
}

// DefaultFaceConfig returns the reference tuning for 1280x720 frames.
func DefaultFaceConfig() FaceConfig {
	return FaceConfig{
		Policy:              PolicyFixed,
		MovementThreshold:   10,
		NormalizedThreshold: 0.1,
		Window:              3,
	}
}

// Validate checks the configuration.
func (c *FaceConfig) Validate() error {
	switch c.Policy {
	case PolicyFixed, PolicyNormalized, PolicySmoothed:
	default:
		return fmt.Errorf("unknown movement policy %q", c.Policy)
	}
	if c.MovementThreshold < 0 {
		return fmt.Errorf("movement_threshold must not be negative, got %v", c.MovementThreshold)
	}
	if c.NormalizedThreshold < 0 {
		return fmt.Errorf("normalized_threshold must not be negative, got %v", c.NormalizedThreshold)
	}
	if c.Window < 1 {
		return fmt.Errorf("window must be at least 1, got %d", c.Window)
	}
	return nil
}

// FaceResult is the outcome of classifying one frame.
type FaceResult struct {
	Verdict Verdict
	Faces   int

	// Set for single-face frames
	CenterX, CenterY float64
	Face             detection.Box

	// Displacement from the previous center, valid when HadPrevious
	Displacement float64
	HadPrevious  bool
}

// FaceClassifier tracks the position of a single face across frames.
//
// Zero or several faces reset the tracked center and the displacement
// window, so movement is only ever measured between consecutive
// single-face frames.
type FaceClassifier struct {
	cfg FaceConfig

	hasCenter bool
	lastX     float64
	lastY     float64
	window    []float64
}

// NewFaceClassifier creates a classifier. Invalid configs fall back to defaults
// field by field.
func NewFaceClassifier(cfg FaceConfig) *FaceClassifier {
	def := DefaultFaceConfig()
	if cfg.Policy == "" {
		cfg.Policy = def.Policy
	}
	if cfg.Window < 1 {
		cfg.Window = def.Window
	}
	return &FaceClassifier{
		cfg:    cfg,
		window: make([]float64, 0, cfg.Window),
	}
}

// Classify updates the tracker with the faces seen in one frame.
func (c *FaceClassifier) Classify(boxes []detection.Box) FaceResult {
	res := FaceResult{Faces: len(boxes)}

	switch {
	case len(boxes) == 0:
		c.Reset()
		res.Verdict = VerdictNoSubject
		return res
	case len(boxes) > 1:
		c.Reset()
		res.Verdict = VerdictMultiSubject
		return res
	}

	face := boxes[0]
	x, y := face.Center()
	res.Face = face
	res.CenterX, res.CenterY = x, y
	res.Verdict = VerdictNormal

	if c.hasCenter {
		d := detection.Distance(c.lastX, c.lastY, x, y)
		res.Displacement = d
		res.HadPrevious = true
		c.push(d)
		if c.moved(d, face) {
			res.Verdict = VerdictMovement
		}
	}

	c.lastX, c.lastY = x, y
	c.hasCenter = true
	return res
}

func (c *FaceClassifier) moved(d float64, face detection.Box) bool {
	switch c.cfg.Policy {
	case PolicyNormalized:
		if face.W > 0 {
			return d/face.W > c.cfg.NormalizedThreshold
		}
		return d > c.cfg.MovementThreshold
	case PolicySmoothed:
		return mean(c.window) > c.cfg.MovementThreshold
	default:
		return d > c.cfg.MovementThreshold
	}
}

func (c *FaceClassifier) push(d float64) {
	if len(c.window) == c.cfg.Window {
		copy(c.window, c.window[1:])
		c.window = c.window[:len(c.window)-1]
	}
	c.window = append(c.window, d)
}

// Reset clears the tracked center and the displacement window.
func (c *FaceClassifier) Reset() {
	c.hasCenter = false
	c.lastX, c.lastY = 0, 0
	c.window = c.window[:0]
}

// LastCenter returns the tracked center, if any.
func (c *FaceClassifier) LastCenter() (x, y float64, ok bool) {
	return c.lastX, c.lastY, c.hasCenter
}

// Window returns a copy of the displacement history, oldest first.
func (c *FaceClassifier) Window() []float64 {
	out := make([]float64, len(c.window))
	copy(out, c.window)
	return out
}

// Config returns the classifier configuration.
func (c *FaceClassifier) Config() FaceConfig {
	return c.cfg
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
