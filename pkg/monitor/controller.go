package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-proctor/pkg/metrics"
	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// State is the lifecycle state of a controller.
type State string

const (
	StateNotStarted    State = "not_started"
	StateStarting      State = "starting"
	StateRunning       State = "running"
	StateStopRequested State = "stop_requested"
	StateStopped       State = "stopped"
)

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Modality proctor.Modality

	// NewUnit builds the execution unit for each start.
	NewUnit UnitFactory

	// Grace is how long a cooperative stop may take before the unit is
	// killed.
	Grace time.Duration

	// KillTimeout bounds the wait for a killed unit to release its device.
	KillTimeout time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Controller starts and stops one modality's monitor. Start, Stop and
// Restart are serialized, so two units never hold the device at once.
type Controller struct {
	cfg    ControllerConfig
	logger *slog.Logger

	mu      sync.Mutex // serializes lifecycle transitions
	unit    Unit
	session *Session

	state atomic.Value // State
}

// NewController creates a controller in StateNotStarted.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Grace <= 0 {
		cfg.Grace = time.Second
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		cfg:    cfg,
		logger: logger.With("component", "controller", "modality", string(cfg.Modality)),
	}
	c.state.Store(StateNotStarted)
	return c
}

// Modality returns the controlled modality.
func (c *Controller) Modality() proctor.Modality {
	return c.cfg.Modality
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	return c.state.Load().(State)
}

func (c *Controller) setState(s State) {
	c.state.Store(s)
}

// Start launches a new session unless one is already running.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(ctx)
}

func (c *Controller) startLocked(ctx context.Context) error {
	if c.unit != nil && c.unit.Alive() {
		return nil
	}

	c.setState(StateStarting)
	s := NewSession(c.cfg.Modality, nil)
	unit, err := c.cfg.NewUnit(s)
	if err != nil {
		s.setErr(err)
		s.setStatus(StatusStopped)
		c.session = s
		c.setState(StateStopped)
		return fmt.Errorf("build %s unit: %w", c.cfg.Modality, err)
	}
	if us := unit.Session(); us != nil {
		s = us
	}

	if err := unit.Start(ctx); err != nil {
		c.session = s
		c.unit = nil
		c.setState(StateStopped)
		c.logger.Error("monitor failed to start", "error", err)
		return err
	}

	c.unit = unit
	c.session = s
	c.setState(StateRunning)
	c.cfg.Metrics.Started(string(c.cfg.Modality))
	c.logger.Info("monitor started", "session", s.ID)

	go c.watch(unit)
	return nil
}

// watch marks the controller stopped when a unit exits on its own.
func (c *Controller) watch(unit Unit) {
	<-unit.Done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unit != unit {
		return
	}
	if c.State() == StateRunning {
		c.logger.Warn("monitor exited", "error", unit.Err())
		c.setState(StateStopped)
	}
}

// Stop ends the running session. It asks the unit to exit, waits up to
// Grace, then kills it and waits up to KillTimeout. Stopping a stopped
// controller is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	unit := c.unit
	if unit == nil {
		if c.State() != StateNotStarted {
			c.setState(StateStopped)
		}
		return nil
	}

	c.setState(StateStopRequested)
	unit.Stop()

	grace := time.NewTimer(c.cfg.Grace)
	defer grace.Stop()

	select {
	case <-unit.Done():
	case <-grace.C:
		c.logger.Warn("monitor did not stop in time, killing", "grace", c.cfg.Grace)
		if err := unit.Kill(); err != nil {
			c.logger.Warn("kill failed", "error", err)
		}
		kill := time.NewTimer(c.cfg.KillTimeout)
		defer kill.Stop()
		select {
		case <-unit.Done():
		case <-kill.C:
			c.setState(StateStopped)
			c.unit = nil
			return fmt.Errorf("%s monitor did not exit %v after kill", c.cfg.Modality, c.cfg.KillTimeout)
		}
	}

	c.unit = nil
	c.setState(StateStopped)
	c.logger.Info("monitor stopped", "session", unit.Session().ID)
	return nil
}

// Restart stops the current session, then starts a new one.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stopLocked(); err != nil {
		return err
	}
	return c.startLocked(ctx)
}

// IsRunning reports whether a unit is confirmed alive.
func (c *Controller) IsRunning() bool {
	if c.State() != StateRunning {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unit != nil && c.unit.Alive()
}

// Session returns a snapshot of the latest session, or nil before the
// first start.
func (c *Controller) Session() *SessionInfo {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	info := s.Info()
	return &info
}
