package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-proctor/pkg/counter"
	"github.com/teslashibe/go-proctor/pkg/metrics"
	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// ErrUnknownModality is returned for a modality without a controller.
var ErrUnknownModality = errors.New("monitor: unknown modality")

// MonitorStatus describes one controller.
type MonitorStatus struct {
	Modality proctor.Modality `json:"modality"`
	State    State            `json:"state"`
	Running  bool             `json:"running"`
	Session  *SessionInfo     `json:"session,omitempty"`
}

// Status describes the whole proctor.
type Status struct {
	Monitors []MonitorStatus `json:"monitors"`
	Count    int             `json:"count"`
}

// AttemptResult reports which monitors a new attempt started with.
type AttemptResult struct {
	Started []proctor.Modality          `json:"started"`
	Failed  map[proctor.Modality]string `json:"failed,omitempty"`
}

// Proctor ties the monitors to the quiz attempt lifecycle.
type Proctor struct {
	counter counter.Counter
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu          sync.Mutex // serializes attempt transitions
	controllers []*Controller
}

// NewProctor bundles controllers around a shared counter.
func NewProctor(c counter.Counter, m *metrics.Metrics, logger *slog.Logger, controllers ...*Controller) *Proctor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Proctor{
		counter:     c,
		metrics:     m,
		logger:      logger.With("component", "proctor"),
		controllers: controllers,
	}
}

// Controller returns the controller for modality.
func (p *Proctor) Controller(modality proctor.Modality) (*Controller, error) {
	for _, c := range p.controllers {
		if c.Modality() == modality {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModality, modality)
}

// Counter returns the shared suspicion counter.
func (p *Proctor) Counter() counter.Counter {
	return p.counter
}

// BeginAttempt starts a fresh quiz attempt: it stops both monitors, resets
// the counter and starts both monitors again. A monitor that fails to
// start is reported in the result and the attempt proceeds without it.
func (p *Proctor) BeginAttempt(ctx context.Context) (AttemptResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.stopAll(); err != nil {
		p.logger.Warn("teardown before attempt incomplete", "error", err)
	}

	if err := p.counter.Reset(ctx); err != nil {
		return AttemptResult{}, fmt.Errorf("reset counter: %w", err)
	}
	p.metrics.SetCount(0)

	res := AttemptResult{Failed: map[proctor.Modality]string{}}
	for _, c := range p.controllers {
		if err := c.Start(ctx); err != nil {
			res.Failed[c.Modality()] = err.Error()
			p.logger.Error("monitor unavailable for attempt", "modality", c.Modality(), "error", err)
			continue
		}
		res.Started = append(res.Started, c.Modality())
	}
	p.logger.Info("attempt started", "started", res.Started, "failed", len(res.Failed))
	return res, nil
}

// EndAttempt stops both monitors on quiz completion or logout. The counter
// keeps its value for scoring.
func (p *Proctor) EndAttempt() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.stopAll()
	p.logger.Info("attempt ended", "error", err)
	return err
}

func (p *Proctor) stopAll() error {
	var errs []error
	for _, c := range p.controllers {
		if err := c.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResetCounter zeroes the suspicion counter outside an attempt transition.
func (p *Proctor) ResetCounter(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.counter.Reset(ctx); err != nil {
		return err
	}
	p.metrics.SetCount(0)
	return nil
}

// Status returns every monitor's state and the current count.
func (p *Proctor) Status(ctx context.Context) (Status, error) {
	st := Status{Monitors: make([]MonitorStatus, 0, len(p.controllers))}
	for _, c := range p.controllers {
		st.Monitors = append(st.Monitors, MonitorStatus{
			Modality: c.Modality(),
			State:    c.State(),
			Running:  c.IsRunning(),
			Session:  c.Session(),
		})
	}
	n, err := p.counter.Read(ctx)
	if err != nil {
		return st, fmt.Errorf("read counter: %w", err)
	}
	st.Count = n
	return st, nil
}
