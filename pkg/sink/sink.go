// Package sink persists flagged proctoring events: it writes the evidence
// artifact, increments the suspicion counter and fans the event out to
// metrics, the ledger and live subscribers.
package sink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-proctor/pkg/audioio"
	"github.com/teslashibe/go-proctor/pkg/counter"
	"github.com/teslashibe/go-proctor/pkg/detection"
	"github.com/teslashibe/go-proctor/pkg/metrics"
	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// Annotator draws detection boxes onto a JPEG frame.
type Annotator interface {
	Annotate(jpeg []byte, boxes []detection.Box) ([]byte, error)
}

// Notifier receives every recorded event.
type Notifier interface {
	Publish(ev proctor.Event)
}

// Payload is the evidence attached to an event.
type Payload struct {
	SessionID string
	Verdict   proctor.Verdict

	// Visual evidence
	JPEG  []byte
	Boxes []detection.Box

	// Audio evidence
	Audio *audioio.AudioChunk
}

// Config configures a Sink.
type Config struct {
	ImageDir string // JPEG artifacts
	AudioDir string // WAV artifacts

	Counter   counter.Counter
	Ledger    counter.Ledger   // optional
	Notifier  Notifier         // optional
	Annotator Annotator        // optional
	Metrics   *metrics.Metrics // optional
	Logger    *slog.Logger     // optional

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Sink records events. It is safe for concurrent use by both monitors.
type Sink struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a sink.
func New(cfg Config) *Sink {
	if cfg.ImageDir == "" {
		cfg.ImageDir = "captures"
	}
	if cfg.AudioDir == "" {
		cfg.AudioDir = "audio_captures"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{cfg: cfg, logger: logger.With("component", "sink")}
}

// Record persists a flagged event: artifact first, then the counter.
//
// A failed artifact write is logged and the event is still counted. A
// failed counter update is returned as *CounterStoreError. Photo snapshots
// are written but never counted.
func (s *Sink) Record(ctx context.Context, eventType proctor.EventType, p Payload) (proctor.Event, error) {
	now := s.cfg.Now()
	modality := eventType.Modality()

	ev := proctor.Event{
		ID:        uuid.NewString(),
		SessionID: p.SessionID,
		Modality:  modality,
		Type:      eventType,
		Verdict:   p.Verdict,
		At:        now,
	}

	path, err := s.writeArtifact(eventType, now, p)
	if err != nil {
		werr := &ArtifactWriteError{Path: ArtifactName(string(eventType), now, eventType.Ext()), Err: err}
		s.logger.Error("artifact write failed", "event", eventType, "error", werr)
		s.cfg.Metrics.ArtifactError(string(modality))
	}
	ev.Artifact = path

	if eventType.Counted() {
		n, err := s.cfg.Counter.Increment(ctx)
		if err != nil {
			s.cfg.Metrics.CounterError()
			return ev, &CounterStoreError{Err: err}
		}
		ev.Count = n
		s.cfg.Metrics.SetCount(n)
	}

	s.cfg.Metrics.Event(string(modality), string(eventType))

	if s.cfg.Ledger != nil {
		if err := s.cfg.Ledger.Append(ctx, ev); err != nil {
			s.logger.Warn("ledger append failed", "event", ev.ID, "error", err)
		}
	}
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.Publish(ev)
	}

	s.logger.Info("event recorded",
		"session", ev.SessionID,
		"event", eventType,
		"count", ev.Count,
		"artifact", ev.Artifact,
	)
	return ev, nil
}

func (s *Sink) writeArtifact(eventType proctor.EventType, now time.Time, p Payload) (string, error) {
	if eventType == proctor.EventSound {
		if p.Audio == nil {
			return "", errors.New("no audio payload")
		}
		return writeWAV(s.cfg.AudioDir, string(eventType), now, p.Audio)
	}

	if len(p.JPEG) == 0 {
		return "", errors.New("no image payload")
	}
	data := p.JPEG
	if s.cfg.Annotator != nil && len(p.Boxes) > 0 {
		annotated, err := s.cfg.Annotator.Annotate(p.JPEG, p.Boxes)
		if err != nil {
			s.logger.Warn("annotation failed, writing raw frame", "error", err)
		} else {
			data = annotated
		}
	}
	return writeFile(s.cfg.ImageDir, string(eventType), now, "jpg", data)
}
