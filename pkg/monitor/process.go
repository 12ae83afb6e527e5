package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/protocol"
)

// ErrExitedBeforeReady is returned when a monitor process exits without
// reporting readiness.
var ErrExitedBeforeReady = errors.New("monitor: process exited before ready")

// ProcessConfig configures monitor child processes.
type ProcessConfig struct {
	// Executable is the proctor binary. Defaults to the running executable.
	Executable string

	// Args precede "monitor <modality> --session <id>", e.g. a config flag.
	Args []string

	// Env is appended to the parent environment.
	Env []string

	// ReadyTimeout bounds the wait for the child to open its device.
	ReadyTimeout time.Duration

	// StopDir holds the sentinel stop files.
	StopDir string

	// Stderr receives the child's logs. Defaults to os.Stderr.
	Stderr io.Writer

	// OnEvent receives events the child reports on stdout.
	OnEvent func(proctor.Event)

	Logger *slog.Logger
}

// ProcessUnit runs a monitor in a child process speaking the protocol
// line format on stdout: one ready or failed message, then events.
type ProcessUnit struct {
	cfg      ProcessConfig
	modality proctor.Modality
	session  *Session
	flag     *StopFlag
	logger   *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool
	err     error
	done    chan struct{}
}

// NewProcessUnit creates a unit for one session.
func NewProcessUnit(cfg ProcessConfig, s *Session) *ProcessUnit {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 10 * time.Second
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessUnit{
		cfg:      cfg,
		modality: s.Modality,
		session:  s,
		flag:     NewStopFlag(cfg.StopDir, s.Modality),
		logger:   logger.With("modality", string(s.Modality), "session", s.ID),
		done:     make(chan struct{}),
	}
}

// ProcessUnits returns a factory building a process unit per session.
func ProcessUnits(cfg ProcessConfig) UnitFactory {
	return func(s *Session) (Unit, error) {
		return NewProcessUnit(cfg, s), nil
	}
}

// Start spawns the child and waits for its ready line.
func (u *ProcessUnit) Start(ctx context.Context) error {
	u.mu.Lock()
	if u.started {
		u.mu.Unlock()
		return nil
	}
	u.started = true
	u.mu.Unlock()

	exe := u.cfg.Executable
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return u.fail(newError(KindDeviceUnavailable, u.modality, fmt.Errorf("locate executable: %w", err)))
		}
		exe = self
	}
	if err := u.flag.Clear(); err != nil {
		return u.fail(newError(KindDeviceUnavailable, u.modality, fmt.Errorf("clear stop flag: %w", err)))
	}

	args := append(append([]string{}, u.cfg.Args...), "monitor", string(u.modality), "--session", u.session.ID)
	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), u.cfg.Env...)
	cmd.Stderr = u.cfg.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return u.fail(newError(KindDeviceUnavailable, u.modality, err))
	}
	if err := cmd.Start(); err != nil {
		return u.fail(newError(KindDeviceUnavailable, u.modality, fmt.Errorf("spawn monitor: %w", err)))
	}
	u.mu.Lock()
	u.cmd = cmd
	u.mu.Unlock()
	u.logger.Info("monitor process spawned", "pid", cmd.Process.Pid)

	ready := make(chan error, 1)
	go u.supervise(stdout, ready)

	timer := time.NewTimer(u.cfg.ReadyTimeout)
	defer timer.Stop()

	select {
	case err := <-ready:
		if err != nil {
			cmd.Process.Kill()
			<-u.done
			u.setErr(err)
			return err
		}
	case <-ctx.Done():
		cmd.Process.Kill()
		<-u.done
		return ctx.Err()
	case <-timer.C:
		cmd.Process.Kill()
		<-u.done
		err := newError(KindDeviceUnavailable, u.modality, fmt.Errorf("not ready after %v", u.cfg.ReadyTimeout))
		u.setErr(err)
		return err
	}

	u.session.setStatus(StatusRunning)
	return nil
}

func (u *ProcessUnit) fail(err error) error {
	u.mu.Lock()
	u.err = err
	u.mu.Unlock()
	u.session.setErr(err)
	u.session.setStatus(StatusStopped)
	close(u.done)
	return err
}

func (u *ProcessUnit) setErr(err error) {
	u.mu.Lock()
	u.err = err
	u.mu.Unlock()
	u.session.setErr(err)
}

// supervise reads the child's stdout until EOF, then reaps it.
func (u *ProcessUnit) supervise(stdout io.Reader, ready chan<- error) {
	signalled := false
	signal := func(err error) {
		if !signalled {
			signalled = true
			ready <- err
		}
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		msg, err := protocol.ParseMessage(scanner.Bytes())
		if err != nil {
			u.logger.Debug("ignoring monitor output", "line", scanner.Text())
			continue
		}
		switch msg.Type {
		case protocol.TypeReady:
			if data, err := msg.GetReadyData(); err == nil {
				if data.SessionID != "" && data.SessionID != u.session.ID {
					u.logger.Warn("monitor reported a different session", "reported", data.SessionID)
				}
				u.logger.Info("monitor process ready", "pid", data.PID)
			}
			signal(nil)
		case protocol.TypeFailed:
			kind, text := KindDeviceUnavailable, "monitor failed"
			if data, err := msg.GetErrorData(); err == nil {
				if data.Kind != "" {
					kind = Kind(data.Kind)
				}
				if data.Message != "" {
					text = data.Message
				}
			}
			ferr := newError(kind, u.modality, errors.New(text))
			u.session.setErr(ferr)
			signal(ferr)
		case protocol.TypeEvent:
			ev, err := msg.GetEvent()
			if err != nil {
				u.logger.Warn("bad event from monitor", "error", err)
				continue
			}
			if ev.Type.Counted() {
				u.session.addEvent()
			}
			if u.cfg.OnEvent != nil {
				u.cfg.OnEvent(*ev)
			}
		}
	}
	signal(newError(KindDeviceUnavailable, u.modality, ErrExitedBeforeReady))

	waitErr := u.cmd.Wait()
	u.flag.Clear()

	u.mu.Lock()
	if waitErr != nil && !u.session.StopRequested() {
		u.err = fmt.Errorf("monitor process: %w", waitErr)
		u.session.setErr(u.err)
	}
	u.mu.Unlock()

	u.session.setStatus(StatusStopped)
	u.logger.Info("monitor process exited", "error", waitErr)
	close(u.done)
}

// Stop raises the stop flag and sends SIGTERM.
func (u *ProcessUnit) Stop() {
	u.session.RequestStop()
	if err := u.flag.Raise(); err != nil {
		u.logger.Warn("failed to raise stop flag", "error", err)
	}
	u.mu.Lock()
	cmd := u.cmd
	u.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Signal(syscall.SIGTERM)
	}
}

// Kill terminates the child process.
func (u *ProcessUnit) Kill() error {
	u.session.RequestStop()
	u.mu.Lock()
	cmd := u.cmd
	u.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return ErrNotRunning
	}
	err := cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Done is closed once the child has been reaped.
func (u *ProcessUnit) Done() <-chan struct{} {
	return u.done
}

// Alive reports whether the child is running.
func (u *ProcessUnit) Alive() bool {
	u.mu.Lock()
	started := u.cmd != nil
	u.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-u.done:
		return false
	default:
		return true
	}
}

// Err returns the child's exit error.
func (u *ProcessUnit) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// Session returns the unit's session.
func (u *ProcessUnit) Session() *Session {
	return u.session
}

var _ Unit = (*ProcessUnit)(nil)
