package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-proctor/internal/config"
	"github.com/teslashibe/go-proctor/pkg/audioio"
	"github.com/teslashibe/go-proctor/pkg/counter"
	"github.com/teslashibe/go-proctor/pkg/metrics"
	"github.com/teslashibe/go-proctor/pkg/monitor"
	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/sink"
	"github.com/teslashibe/go-proctor/pkg/vision"
)

// stack holds the shared components a monitor records into.
type stack struct {
	cfg     *config.Config
	logger  *slog.Logger
	counter counter.Counter
	ledger  counter.Ledger
	metrics *metrics.Metrics
	sink    *sink.Sink
	closers []func() error
}

// openStack opens the counter, the optional ledger and the sink.
// notifier may be nil.
func openStack(cfg *config.Config, notifier sink.Notifier, logger *slog.Logger) (*stack, error) {
	s := &stack{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	c, closeCounter, err := counter.Open(cfg.CounterConfig())
	if err != nil {
		return nil, fmt.Errorf("open counter: %w", err)
	}
	s.counter = c
	s.closers = append(s.closers, closeCounter)

	if path := cfg.Path(cfg.Artifacts.Ledger); path != "" {
		if l, ok := c.(counter.Ledger); ok && path == cfg.CounterConfig().Path {
			s.ledger = l
		} else {
			db, err := counter.NewSQLiteCounter(path)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("open ledger: %w", err)
			}
			s.ledger = db
			s.closers = append(s.closers, db.Close)
		}
	}

	var annotator sink.Annotator
	if cfg.Artifacts.Annotate {
		a, err := vision.NewAnnotator()
		if err != nil {
			logger.Warn("artifact annotation unavailable", "error", err)
		} else {
			annotator = a
		}
	}

	s.sink = sink.New(sink.Config{
		ImageDir:  cfg.Path(cfg.Artifacts.ImageDir),
		AudioDir:  cfg.Path(cfg.Artifacts.AudioDir),
		Counter:   s.counter,
		Ledger:    s.ledger,
		Notifier:  notifier,
		Annotator: annotator,
		Metrics:   s.metrics,
		Logger:    logger,
	})
	return s, nil
}

func (s *stack) loopOptions() monitor.LoopOptions {
	return monitor.LoopOptions{
		Sink:               s.sink,
		Metrics:            s.metrics,
		Logger:             s.logger,
		FailOnCounterError: s.cfg.Lifecycle.FailOnCounterError,
	}
}

// newRunner builds a fresh loop bound to its devices. Devices are opened
// by the runner, not here.
func (s *stack) newRunner(modality proctor.Modality) (monitor.Runner, error) {
	switch modality {
	case proctor.ModalityVisual:
		cam, err := vision.NewCamera(s.cfg.Visual.Backend, s.cfg.Visual.Camera, s.logger)
		if err != nil {
			return nil, err
		}
		det, err := vision.NewDetector(s.cfg.Visual.Detector, s.logger)
		if err != nil {
			cam.Close()
			return nil, err
		}
		// Pixel thresholds are tuned at 1280x720
		loop := s.cfg.Visual.Loop
		loop.Classifier.MovementThreshold = s.cfg.Visual.Camera.ScaleToReference(loop.Classifier.MovementThreshold)
		return monitor.NewVisualLoop(loop, cam, det, s.loopOptions()), nil

	case proctor.ModalityAudio:
		src, err := audioio.NewSource(s.cfg.Audio.Source, s.logger)
		if err != nil {
			return nil, err
		}
		return monitor.NewAudioLoop(s.cfg.Audio.Loop, src, s.loopOptions()), nil
	}
	return nil, fmt.Errorf("%w: %q", monitor.ErrUnknownModality, modality)
}

// enabled lists the modalities switched on in the config.
func enabled(cfg *config.Config) []proctor.Modality {
	var out []proctor.Modality
	if cfg.Visual.Enabled {
		out = append(out, proctor.ModalityVisual)
	}
	if cfg.Audio.Enabled {
		out = append(out, proctor.ModalityAudio)
	}
	return out
}

// Close releases the counter and ledger.
func (s *stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
