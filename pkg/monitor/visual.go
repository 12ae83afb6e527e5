package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/teslashibe/go-proctor/pkg/camera"
	"github.com/teslashibe/go-proctor/pkg/detection"
	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/sink"
)

// VisualConfig configures the face monitor loop.
type VisualConfig struct {
	Classifier proctor.FaceConfig `yaml:"classifier" json:"classifier"`

	// FrameInterval is the pause between frames. Zero runs at device rate.
	FrameInterval time.Duration `yaml:"frame_interval" json:"frame_interval"`

	// SnapshotInterval saves an uncounted photo_ artifact at most this
	// often while exactly one face is visible. Zero disables snapshots.
	SnapshotInterval time.Duration `yaml:"snapshot_interval" json:"snapshot_interval"`

	// MaxConsecutiveErrors is how many failed captures in a row are
	// tolerated. Zero makes the first failure fatal.
	MaxConsecutiveErrors int `yaml:"max_consecutive_errors" json:"max_consecutive_errors"`

	// RetryDelay is the pause after a tolerated capture failure.
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// DefaultVisualConfig returns the reference face monitor settings.
func DefaultVisualConfig() VisualConfig {
	return VisualConfig{
		Classifier:           proctor.DefaultFaceConfig(),
		SnapshotInterval:     5 * time.Second,
		MaxConsecutiveErrors: 0,
		RetryDelay:           time.Second,
	}
}

// Validate checks the configuration.
func (c *VisualConfig) Validate() error {
	if err := c.Classifier.Validate(); err != nil {
		return err
	}
	if c.FrameInterval < 0 || c.SnapshotInterval < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("visual intervals must not be negative")
	}
	if c.MaxConsecutiveErrors < 0 {
		return fmt.Errorf("max_consecutive_errors must not be negative, got %d", c.MaxConsecutiveErrors)
	}
	return nil
}

// VisualLoop captures frames, detects faces and flags movement and
// multiple faces.
type VisualLoop struct {
	cfg      VisualConfig
	cam      camera.Source
	detector detection.Detector
	opts     LoopOptions
}

// NewVisualLoop binds a loop to a camera and detector. The loop owns both
// and closes them when Run returns.
func NewVisualLoop(cfg VisualConfig, cam camera.Source, detector detection.Detector, opts LoopOptions) *VisualLoop {
	return &VisualLoop{cfg: cfg, cam: cam, detector: detector, opts: opts}
}

// Modality returns visual.
func (l *VisualLoop) Modality() proctor.Modality {
	return proctor.ModalityVisual
}

// Open opens the camera.
func (l *VisualLoop) Open(ctx context.Context) error {
	if err := l.cam.Open(ctx); err != nil {
		return newError(KindDeviceUnavailable, proctor.ModalityVisual, err)
	}
	return nil
}

// Abort closes the camera.
func (l *VisualLoop) Abort() error {
	return l.cam.Close()
}

// Run is the capture, classify, emit, sleep loop.
func (l *VisualLoop) Run(ctx context.Context, s *Session) (err error) {
	logger := l.opts.logger(proctor.ModalityVisual).With("session", s.ID)
	classifier := proctor.NewFaceClassifier(l.cfg.Classifier)

	defer func() {
		l.cam.Close()
		l.detector.Close()
		if err != nil {
			s.setErr(err)
		}
		s.setStatus(StatusStopped)
		l.opts.Metrics.SetRunning(string(proctor.ModalityVisual), false)
		logger.Info("visual monitor stopped", "error", err)
	}()

	s.setStatus(StatusRunning)
	l.opts.Metrics.SetRunning(string(proctor.ModalityVisual), true)
	logger.Info("visual monitor running",
		"camera", l.cam.Name(),
		"detector", l.detector.Name(),
		"policy", classifier.Config().Policy,
	)

	var (
		failures     int
		lastSnapshot time.Time
	)
	for !stopping(ctx, s) {
		frame, cerr := l.cam.Capture(ctx)
		if cerr == nil {
			var boxes []detection.Box
			boxes, cerr = l.detector.Detect(frame.JPEG)
			if cerr == nil {
				failures = 0
				if ferr := l.handleFrame(ctx, s, classifier, frame, boxes, &lastSnapshot); ferr != nil {
					return ferr
				}
				if !sleep(ctx, l.cfg.FrameInterval) {
					return nil
				}
				continue
			}
		}

		if stopping(ctx, s) {
			return nil
		}
		failures++
		l.opts.Metrics.CaptureError(string(proctor.ModalityVisual))
		terr := newError(KindTransientCapture, proctor.ModalityVisual, cerr)
		s.setErr(terr)
		if failures > l.cfg.MaxConsecutiveErrors {
			logger.Error("frame capture failed", "error", cerr, "consecutive", failures)
			return newError(KindDeviceUnavailable, proctor.ModalityVisual,
				fmt.Errorf("%d consecutive capture failures: %w", failures, cerr))
		}
		logger.Warn("frame capture failed, retrying", "error", cerr, "consecutive", failures)
		if !sleep(ctx, l.cfg.RetryDelay) {
			return nil
		}
	}
	return nil
}

func (l *VisualLoop) handleFrame(ctx context.Context, s *Session, c *proctor.FaceClassifier, frame camera.Frame, boxes []detection.Box, lastSnapshot *time.Time) error {
	logger := l.opts.logger(proctor.ModalityVisual).With("session", s.ID)
	res := c.Classify(boxes)
	l.opts.Metrics.Verdict(string(proctor.ModalityVisual), string(res.Verdict))

	switch res.Verdict {
	case proctor.VerdictNoSubject:
		logger.Debug("no face detected")
		return nil
	case proctor.VerdictMultiSubject:
		logger.Warn("multiple faces detected", "faces", res.Faces)
	case proctor.VerdictMovement:
		logger.Warn("movement detected", "displacement", res.Displacement, "x", res.CenterX, "y", res.CenterY)
	}

	if res.Verdict.Flagged() {
		return record(ctx, l.opts, s, logger, res.Verdict.EventType(), sink.Payload{
			Verdict: res.Verdict,
			JPEG:    frame.JPEG,
			Boxes:   boxes,
		})
	}

	if l.cfg.SnapshotInterval > 0 && res.Faces == 1 && frame.CapturedAt.Sub(*lastSnapshot) >= l.cfg.SnapshotInterval {
		*lastSnapshot = frame.CapturedAt
		return record(ctx, l.opts, s, logger, proctor.EventPhoto, sink.Payload{
			Verdict: res.Verdict,
			JPEG:    frame.JPEG,
		})
	}
	return nil
}

var _ Runner = (*VisualLoop)(nil)
