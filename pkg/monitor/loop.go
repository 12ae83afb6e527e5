package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-proctor/pkg/metrics"
	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/sink"
)

// Runner is one modality's loop bound to its sensor.
type Runner interface {
	// Modality returns the sensor kind.
	Modality() proctor.Modality

	// Open acquires the sensor. Errors mean the device is unavailable.
	Open(ctx context.Context) error

	// Run samples until the session is stopped, ctx is cancelled, or a
	// fatal error occurs. It releases the sensor before returning.
	Run(ctx context.Context, s *Session) error

	// Abort releases the sensor from another goroutine so a blocked read
	// returns. Used for forceful termination.
	Abort() error
}

// Recorder persists flagged events. *sink.Sink implements it.
type Recorder interface {
	Record(ctx context.Context, eventType proctor.EventType, p sink.Payload) (proctor.Event, error)
}

// LoopOptions are shared by both loops.
type LoopOptions struct {
	Sink               Recorder
	Metrics            *metrics.Metrics
	Logger             *slog.Logger
	FailOnCounterError bool
}

func (o LoopOptions) logger(modality proctor.Modality) *slog.Logger {
	l := o.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("modality", string(modality))
}

// stopping reports whether the loop should exit.
func stopping(ctx context.Context, s *Session) bool {
	return ctx.Err() != nil || s.StopRequested()
}

// sleep waits d or until ctx is done. It returns false when cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// record sends a flagged event to the sink and applies the counter policy.
// It returns a non-nil error only when the loop must terminate.
func record(ctx context.Context, opts LoopOptions, s *Session, logger *slog.Logger, et proctor.EventType, p sink.Payload) error {
	p.SessionID = s.ID
	_, err := opts.Sink.Record(ctx, et, p)
	if err == nil {
		if et.Counted() {
			s.addEvent()
		}
		return nil
	}

	kind := KindOf(err)
	if kind == "" {
		kind = KindRecord
	}
	merr := newError(kind, s.Modality, err)
	s.setErr(merr)
	if errors.Is(err, sink.ErrCounterStore) && opts.FailOnCounterError {
		logger.Error("counter update failed, stopping monitor", "error", err)
		return merr
	}
	logger.Warn("event not recorded", "event", et, "error", err)
	return nil
}
