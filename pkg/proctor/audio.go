package proctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-proctor/pkg/audioio"
)

// ErrStopped is returned when calibration is aborted by a stop request.
var ErrStopped = errors.New("proctor: stopped")

// DefaultMultiplier scales the ambient baseline into the loudness threshold.
const DefaultMultiplier = 1.5

// Baseline is the ambient level measured once per session.
type Baseline struct {
	RMS       float64
	Threshold float64
	Samples   int
	Duration  time.Duration
}

// NewBaseline derives the threshold from an ambient level.
func NewBaseline(rms, multiplier float64) Baseline {
	return Baseline{RMS: rms, Threshold: rms * multiplier}
}

// Calibrator measures the ambient baseline.
type Calibrator struct {
	Window     time.Duration `yaml:"window" json:"window"`         // total audio to measure
	Chunk      time.Duration `yaml:"chunk" json:"chunk"`           // stop is polled between chunks
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
}

// DefaultCalibrator returns the reference calibration: 4s window, 1s
// chunks, threshold 1.5x the ambient level.
func DefaultCalibrator() Calibrator {
	return Calibrator{
		Window:     4 * time.Second,
		Chunk:      time.Second,
		Multiplier: DefaultMultiplier,
	}
}

// Calibrate records Window of audio from a started source and returns the
// RMS over the whole window. stopped is polled at chunk boundaries; when it
// reports true calibration returns ErrStopped.
func (c Calibrator) Calibrate(ctx context.Context, src audioio.Source, stopped func() bool) (Baseline, error) {
	if c.Window <= 0 {
		return Baseline{}, fmt.Errorf("calibration window must be positive, got %v", c.Window)
	}
	chunk := c.Chunk
	if chunk <= 0 || chunk > c.Window {
		chunk = c.Window
	}

	cfg := src.Config()
	all := audioio.AudioChunk{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	all.Samples = make([]int16, 0, cfg.FramesFor(c.Window)*cfg.Channels)

	for elapsed := time.Duration(0); elapsed < c.Window; elapsed += chunk {
		if stopped != nil && stopped() {
			return Baseline{}, ErrStopped
		}
		piece := min(chunk, c.Window-elapsed)
		got, err := audioio.Record(ctx, src, piece)
		if err != nil {
			if ctx.Err() != nil {
				return Baseline{}, ErrStopped
			}
			return Baseline{}, fmt.Errorf("calibration capture: %w", err)
		}
		all.Append(got)
	}

	b := NewBaseline(all.Level(), c.Multiplier)
	b.Samples = len(all.Samples)
	b.Duration = time.Duration(all.Duration() * float64(time.Second))
	return b, nil
}

// VolumeClassifier flags chunks louder than a fixed threshold.
type VolumeClassifier struct {
	threshold float64
}

// NewVolumeClassifier creates a classifier from a calibrated baseline.
func NewVolumeClassifier(b Baseline) *VolumeClassifier {
	return &VolumeClassifier{threshold: b.Threshold}
}

// Classify returns VerdictLoud when rms exceeds the threshold. A zero
// threshold flags any non-silent chunk.
func (v *VolumeClassifier) Classify(rms float64) Verdict {
	if rms > v.threshold {
		return VerdictLoud
	}
	return VerdictQuiet
}

// Threshold returns the loudness threshold.
func (v *VolumeClassifier) Threshold() float64 {
	return v.threshold
}
