package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-proctor/pkg/audioio"
	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/sink"
)

// AudioConfig configures the loudness monitor loop.
type AudioConfig struct {
	Calibration proctor.Calibrator `yaml:"calibration" json:"calibration"`

	// ChunkDuration is the audio analysed per sample.
	ChunkDuration time.Duration `yaml:"chunk_duration" json:"chunk_duration"`

	// SampleInterval is the pause between chunks.
	SampleInterval time.Duration `yaml:"sample_interval" json:"sample_interval"`

	// RetryDelay is the pause after a failed capture.
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`

	// MaxConsecutiveErrors is how many failed captures in a row are
	// tolerated before the session ends.
	MaxConsecutiveErrors int `yaml:"max_consecutive_errors" json:"max_consecutive_errors"`
}

// DefaultAudioConfig returns the reference loudness monitor settings.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		Calibration:          proctor.DefaultCalibrator(),
		ChunkDuration:        time.Second,
		SampleInterval:       400 * time.Millisecond,
		RetryDelay:           time.Second,
		MaxConsecutiveErrors: 10,
	}
}

// Validate checks the configuration.
func (c *AudioConfig) Validate() error {
	if c.Calibration.Window <= 0 {
		return fmt.Errorf("calibration window must be positive, got %v", c.Calibration.Window)
	}
	if c.Calibration.Multiplier <= 0 {
		return fmt.Errorf("calibration multiplier must be positive, got %v", c.Calibration.Multiplier)
	}
	if c.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %v", c.ChunkDuration)
	}
	if c.SampleInterval < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("audio intervals must not be negative")
	}
	if c.MaxConsecutiveErrors < 0 {
		return fmt.Errorf("max_consecutive_errors must not be negative, got %d", c.MaxConsecutiveErrors)
	}
	return nil
}

// AudioLoop calibrates an ambient baseline, then flags loud chunks.
type AudioLoop struct {
	cfg  AudioConfig
	src  audioio.Source
	opts LoopOptions
}

// NewAudioLoop binds a loop to a microphone. The loop owns the source and
// closes it when Run returns.
func NewAudioLoop(cfg AudioConfig, src audioio.Source, opts LoopOptions) *AudioLoop {
	return &AudioLoop{cfg: cfg, src: src, opts: opts}
}

// Modality returns audio.
func (l *AudioLoop) Modality() proctor.Modality {
	return proctor.ModalityAudio
}

// Open starts the microphone.
func (l *AudioLoop) Open(ctx context.Context) error {
	if err := l.src.Start(ctx); err != nil {
		return newError(KindDeviceUnavailable, proctor.ModalityAudio, err)
	}
	return nil
}

// Abort closes the microphone.
func (l *AudioLoop) Abort() error {
	return l.src.Close()
}

// Run calibrates once, then repeats capture, classify, emit, sleep.
func (l *AudioLoop) Run(ctx context.Context, s *Session) (err error) {
	logger := l.opts.logger(proctor.ModalityAudio).With("session", s.ID)

	defer func() {
		l.src.Close()
		if err != nil {
			s.setErr(err)
		}
		s.setStatus(StatusStopped)
		l.opts.Metrics.SetRunning(string(proctor.ModalityAudio), false)
		logger.Info("audio monitor stopped", "error", err)
	}()

	l.opts.Metrics.SetRunning(string(proctor.ModalityAudio), true)
	s.setStatus(StatusCalibrating)
	logger.Info("calibrating background noise", "window", l.cfg.Calibration.Window)

	baseline, cerr := l.cfg.Calibration.Calibrate(ctx, l.src, s.StopRequested)
	if errors.Is(cerr, proctor.ErrStopped) || stopping(ctx, s) {
		return nil
	}
	if cerr != nil {
		return newError(KindDeviceUnavailable, proctor.ModalityAudio, cerr)
	}

	s.setBaseline(baseline)
	l.opts.Metrics.SetBaseline(baseline.RMS)
	classifier := proctor.NewVolumeClassifier(baseline)

	s.setStatus(StatusRunning)
	logger.Info("audio monitor running",
		"source", l.src.Name(),
		"baseline_rms", baseline.RMS,
		"threshold_rms", classifier.Threshold(),
	)

	failures := 0
	for !stopping(ctx, s) {
		chunk, rerr := audioio.Record(ctx, l.src, l.cfg.ChunkDuration)
		if rerr != nil {
			if stopping(ctx, s) {
				return nil
			}
			failures++
			l.opts.Metrics.CaptureError(string(proctor.ModalityAudio))
			s.setErr(newError(KindTransientCapture, proctor.ModalityAudio, rerr))
			if failures > l.cfg.MaxConsecutiveErrors {
				logger.Error("audio capture failed", "error", rerr, "consecutive", failures)
				return newError(KindDeviceUnavailable, proctor.ModalityAudio,
					fmt.Errorf("%d consecutive capture failures: %w", failures, rerr))
			}
			logger.Warn("audio capture failed, retrying", "error", rerr, "consecutive", failures)
			if !sleep(ctx, l.cfg.RetryDelay) {
				return nil
			}
			continue
		}
		failures = 0

		rms := chunk.Level()
		verdict := classifier.Classify(rms)
		l.opts.Metrics.Verdict(string(proctor.ModalityAudio), string(verdict))

		if verdict.Flagged() {
			logger.Warn("suspicious sound detected", "rms", rms, "threshold", classifier.Threshold())
			if rerr := record(ctx, l.opts, s, logger, proctor.EventSound, sink.Payload{
				Verdict: verdict,
				Audio:   &chunk,
			}); rerr != nil {
				return rerr
			}
		} else {
			logger.Debug("audio quiet", "rms", rms)
		}

		if !sleep(ctx, l.cfg.SampleInterval) {
			return nil
		}
	}
	return nil
}

var _ Runner = (*AudioLoop)(nil)
