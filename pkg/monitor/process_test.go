package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/protocol"
)

// TestHelperProcess is not a real test. It stands in for the proctor
// binary's monitor subcommand when re-executed by process tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	// -- monitor <modality> --session <id>
	if len(args) < 5 {
		fmt.Fprintf(os.Stderr, "bad args: %v\n", os.Args)
		os.Exit(2)
	}
	modality, sessionID := proctor.Modality(args[2]), args[4]

	emit := func(m *protocol.Message, err error) {
		if err != nil {
			os.Exit(3)
		}
		b, _ := m.Bytes()
		fmt.Println(string(b))
	}

	switch os.Getenv("HELPER_MODE") {
	case "silent":
		os.Exit(0)
	case "fail":
		emit(protocol.NewFailedMessage(string(KindDeviceUnavailable), errors.New("camera busy")))
		os.Exit(1)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM)

	emit(protocol.NewReadyMessage(sessionID, modality, os.Getpid()))
	emit(protocol.NewEventMessage(proctor.Event{
		ID:        "ev-1",
		SessionID: sessionID,
		Modality:  modality,
		Type:      proctor.EventMovement,
		Count:     1,
		At:        time.Now(),
	}))

	if os.Getenv("HELPER_MODE") == "stubborn" {
		signal.Ignore(syscall.SIGTERM)
		time.Sleep(time.Hour)
	}

	flag := NewStopFlag(os.Getenv("HELPER_STOP_DIR"), modality)
	for {
		select {
		case <-sigs:
			os.Exit(0)
		case <-time.After(10 * time.Millisecond):
			if flag.Raised() {
				os.Exit(0)
			}
		}
	}
}

func helperConfig(t *testing.T, mode string, events chan<- proctor.Event) ProcessConfig {
	t.Helper()
	dir := t.TempDir()
	return ProcessConfig{
		Executable:   os.Args[0],
		Args:         []string{"-test.run=TestHelperProcess", "--"},
		Env:          []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode, "HELPER_STOP_DIR=" + dir},
		ReadyTimeout: 5 * time.Second,
		StopDir:      dir,
		Stderr:       io.Discard,
		OnEvent: func(ev proctor.Event) {
			if events != nil {
				events <- ev
			}
		},
	}
}

func TestProcessUnit_ReadyEventsAndStop(t *testing.T) {
	events := make(chan proctor.Event, 4)
	s := NewSession(proctor.ModalityVisual, nil)
	u := NewProcessUnit(helperConfig(t, "ready", events), s)

	if err := u.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !u.Alive() {
		t.Fatal("Process should be alive after ready")
	}
	if s.Status() != StatusRunning {
		t.Errorf("Expected running, got %s", s.Status())
	}

	select {
	case ev := <-events:
		if ev.Type != proctor.EventMovement || ev.SessionID != s.ID {
			t.Errorf("Unexpected relayed event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("No event relayed from child")
	}
	waitFor(t, time.Second, func() bool { return s.Info().Events == 1 })

	u.Stop()
	waitDone(t, u)
	if u.Err() != nil {
		t.Errorf("Expected clean exit, got %v", u.Err())
	}
	if s.Status() != StatusStopped {
		t.Errorf("Expected stopped, got %s", s.Status())
	}
	if NewStopFlag(u.cfg.StopDir, proctor.ModalityVisual).Raised() {
		t.Error("Stop flag should be cleared after exit")
	}
}

func TestProcessUnit_Failed(t *testing.T) {
	s := NewSession(proctor.ModalityVisual, nil)
	u := NewProcessUnit(helperConfig(t, "fail", nil), s)

	err := u.Start(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Expected ErrDeviceUnavailable, got %v", err)
	}
	if u.Alive() {
		t.Error("Process should not be alive after failing")
	}
	if info := s.Info(); info.LastError == "" {
		t.Error("Session should carry the child's error")
	}
}

func TestProcessUnit_ExitBeforeReady(t *testing.T) {
	s := NewSession(proctor.ModalityAudio, nil)
	u := NewProcessUnit(helperConfig(t, "silent", nil), s)

	err := u.Start(context.Background())
	if !errors.Is(err, ErrExitedBeforeReady) {
		t.Fatalf("Expected ErrExitedBeforeReady, got %v", err)
	}
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Expected device unavailable kind, got %v", err)
	}
}

func TestProcessUnit_ControllerKillsStubbornChild(t *testing.T) {
	c := NewController(ControllerConfig{
		Modality: proctor.ModalityAudio,
		Grace:    50 * time.Millisecond,
		NewUnit:  ProcessUnits(helperConfig(t, "stubborn", nil)),
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !c.IsRunning() {
		t.Fatal("Expected running controller")
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if c.State() != StateStopped {
		t.Errorf("Expected %s, got %s", StateStopped, c.State())
	}
}
