// Package camera defines the frame source used by the visual proctoring
// monitor and its capture settings. Device backends live in pkg/vision.
package camera

import "fmt"

// Config holds webcam capture parameters.
type Config struct {
	// Device is the capture device: a numeric index ("0") or a stream URL/file.
	Device string `yaml:"device" json:"device"`

	// === Resolution ===
	Width     int `yaml:"width" json:"width"`         // Frame width in pixels
	Height    int `yaml:"height" json:"height"`       // Frame height in pixels
	Framerate int `yaml:"framerate" json:"framerate"` // Requested FPS, 0 = device default
	Quality   int `yaml:"quality" json:"quality"`     // JPEG quality 1-100

	// Autofocus asks the driver for continuous autofocus where supported.
	Autofocus bool `yaml:"autofocus" json:"autofocus"`
}

// Capture limits accepted by Validate.
const (
	MaxWidth  = 4096
	MaxHeight = 2160
	MaxFPS    = 120
)

// DefaultConfig returns the reference proctoring configuration: the default
// webcam at 1280x720, which the 10px movement threshold is tuned for.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     1280,
		Height:    720,
		Framerate: 0,
		Quality:   85,
		Autofocus: true,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device must not be empty")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 0 || c.Framerate > MaxFPS {
		errors = append(errors, fmt.Sprintf("framerate must be between 0 and %d", MaxFPS))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
