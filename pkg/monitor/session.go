// Package monitor runs the proctoring loops and controls their lifecycle.
//
// A Controller owns one modality. Each start creates a Session and an
// isolated Unit (a goroutine or a child process) that opens the sensor and
// runs the loop; stop asks the unit to exit cooperatively and forces it
// after a grace period. Proctor ties both controllers to the quiz attempt.
package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// SessionStatus is the phase of a monitor session.
type SessionStatus string

const (
	StatusIdle        SessionStatus = "idle"
	StatusCalibrating SessionStatus = "calibrating"
	StatusRunning     SessionStatus = "running"
	StatusStopping    SessionStatus = "stopping"
	StatusStopped     SessionStatus = "stopped"
)

// Session is one run of a modality's loop.
type Session struct {
	ID        string
	Modality  proctor.Modality
	StartedAt time.Time

	stop     atomic.Bool
	stopFlag *StopFlag
	events   atomic.Int64

	mu        sync.RWMutex
	status    SessionStatus
	stoppedAt time.Time
	lastErr   error
	baseline  *proctor.Baseline
}

// NewSession creates an idle session. flag may be nil; when set, its
// presence on disk also counts as a stop request.
func NewSession(modality proctor.Modality, flag *StopFlag) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Modality:  modality,
		StartedAt: time.Now(),
		stopFlag:  flag,
		status:    StatusIdle,
	}
}

// RequestStop asks the loop to exit at its next poll.
func (s *Session) RequestStop() {
	s.stop.Store(true)
	s.mu.Lock()
	if s.status != StatusStopped {
		s.status = StatusStopping
	}
	s.mu.Unlock()
}

// StopRequested reports whether a stop was requested in process or through
// the stop flag file.
func (s *Session) StopRequested() bool {
	if s.stop.Load() {
		return true
	}
	if s.stopFlag != nil && s.stopFlag.Raised() {
		s.stop.Store(true)
		return true
	}
	return false
}

// Status returns the current phase.
func (s *Session) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) setStatus(st SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A stop request wins over later phase changes
	if s.status == StatusStopped || (s.status == StatusStopping && st != StatusStopped) {
		return
	}
	s.status = st
	if st == StatusStopped {
		s.stoppedAt = time.Now()
	}
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Err returns the last error recorded by the loop.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Session) setBaseline(b proctor.Baseline) {
	s.mu.Lock()
	s.baseline = &b
	s.mu.Unlock()
}

func (s *Session) addEvent() {
	s.events.Add(1)
}

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	ID        string           `json:"id"`
	Modality  proctor.Modality `json:"modality"`
	Status    SessionStatus    `json:"status"`
	StartedAt time.Time        `json:"started_at"`
	StoppedAt *time.Time       `json:"stopped_at,omitempty"`
	Events    int64            `json:"events"`
	Baseline  *float64         `json:"baseline_rms,omitempty"`
	Threshold *float64         `json:"threshold_rms,omitempty"`
	LastError string           `json:"last_error,omitempty"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := SessionInfo{
		ID:        s.ID,
		Modality:  s.Modality,
		Status:    s.status,
		StartedAt: s.StartedAt,
		Events:    s.events.Load(),
	}
	if !s.stoppedAt.IsZero() {
		t := s.stoppedAt
		info.StoppedAt = &t
	}
	if s.baseline != nil {
		rms, th := s.baseline.RMS, s.baseline.Threshold
		info.Baseline, info.Threshold = &rms, &th
	}
	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}
	return info
}
