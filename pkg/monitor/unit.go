package monitor

import (
	"context"
	"sync"
)

// Unit is an isolated execution of one monitor session.
type Unit interface {
	// Start opens the sensor and launches the loop. It returns once the
	// device is open, so open failures surface synchronously.
	Start(ctx context.Context) error

	// Stop asks the loop to exit at its next poll. It does not wait.
	Stop()

	// Kill terminates the loop forcefully.
	Kill() error

	// Done is closed once the loop has exited and released its device.
	Done() <-chan struct{}

	// Alive reports whether the loop is running.
	Alive() bool

	// Err returns the error the loop exited with, if any.
	Err() error

	// Session returns the session the unit runs.
	Session() *Session
}

// UnitFactory builds the unit for a new session.
type UnitFactory func(s *Session) (Unit, error)

// GoroutineUnit runs a Runner in its own goroutine. Forceful termination
// closes the sensor so a blocked read returns.
type GoroutineUnit struct {
	runner  Runner
	session *Session

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	err     error
	done    chan struct{}
}

// NewGoroutineUnit creates a unit for runner.
func NewGoroutineUnit(runner Runner, s *Session) *GoroutineUnit {
	return &GoroutineUnit{
		runner:  runner,
		session: s,
		done:    make(chan struct{}),
	}
}

// GoroutineUnits returns a factory that builds a fresh runner per session.
func GoroutineUnits(newRunner func(s *Session) (Runner, error)) UnitFactory {
	return func(s *Session) (Unit, error) {
		r, err := newRunner(s)
		if err != nil {
			return nil, err
		}
		return NewGoroutineUnit(r, s), nil
	}
}

// Start opens the device and starts the loop goroutine.
func (u *GoroutineUnit) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.started {
		return nil
	}
	u.started = true

	if err := u.runner.Open(ctx); err != nil {
		u.err = err
		u.session.setErr(err)
		u.session.setStatus(StatusStopped)
		u.runner.Abort()
		close(u.done)
		return err
	}

	// The loop outlives the request that started it
	runCtx, cancel := context.WithCancel(context.Background())
	u.cancel = cancel

	go func() {
		defer close(u.done)
		defer cancel()
		err := u.runner.Run(runCtx, u.session)
		u.mu.Lock()
		u.err = err
		u.mu.Unlock()
	}()
	return nil
}

// Stop requests a cooperative exit.
func (u *GoroutineUnit) Stop() {
	u.session.RequestStop()
	u.mu.Lock()
	cancel := u.cancel
	u.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Kill closes the sensor out from under the loop.
func (u *GoroutineUnit) Kill() error {
	u.Stop()
	return u.runner.Abort()
}

// Done is closed when the loop goroutine exits.
func (u *GoroutineUnit) Done() <-chan struct{} {
	return u.done
}

// Alive reports whether the loop goroutine is running.
func (u *GoroutineUnit) Alive() bool {
	u.mu.Lock()
	started := u.started
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

// Err returns the loop's exit error.
func (u *GoroutineUnit) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// Session returns the unit's session.
func (u *GoroutineUnit) Session() *Session {
	return u.session
}

var _ Unit = (*GoroutineUnit)(nil)
