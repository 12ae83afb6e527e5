package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-proctor/internal/log"
	"github.com/teslashibe/go-proctor/pkg/monitor"
	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/protocol"
)

var monitorSession string

var monitorCmd = &cobra.Command{
	Use:   "monitor <visual|audio>",
	Short: "Run one monitor in the foreground",
	Long: `Run one monitor until interrupted.

Stdout carries protocol lines: one ready or failed message once the
device is open, then one event message per recorded event. Logs go to
stderr. The control server runs monitors this way in process isolation;
it is also handy for trying a camera or microphone by hand.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(proctor.ModalityVisual), string(proctor.ModalityAudio)},
	RunE:      runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorSession, "session", "", "session id (default: random)")
	rootCmd.AddCommand(monitorCmd)
}

// lineWriter writes protocol messages to stdout, one per line.
type lineWriter struct {
	mu sync.Mutex
}

func (w *lineWriter) write(msg *protocol.Message, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode message: %v\n", err)
		return
	}
	b, err := msg.Bytes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode message: %v\n", err)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	os.Stdout.Write(append(b, '\n'))
}

// Publish implements sink.Notifier.
func (w *lineWriter) Publish(ev proctor.Event) {
	w.write(protocol.NewEventMessage(ev))
}

func runMonitor(cmd *cobra.Command, args []string) error {
	modality, ok := proctor.ParseModality(args[0])
	if !ok {
		return fmt.Errorf("%w: %q", monitor.ErrUnknownModality, args[0])
	}

	out := &lineWriter{}
	fail := func(err error) error {
		kind := monitor.KindOf(err)
		if kind == "" {
			kind = monitor.KindDeviceUnavailable
		}
		out.write(protocol.NewFailedMessage(string(kind), err))
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fail(err)
	}
	log.InitWriter(cfg.LogLevel, os.Stderr)
	logger := log.With("modality", string(modality), "pid", os.Getpid())

	st, err := openStack(cfg, out, logger)
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	runner, err := st.newRunner(modality)
	if err != nil {
		return fail(err)
	}

	session := monitor.NewSession(modality, monitor.NewStopFlag(cfg.Path(cfg.Lifecycle.StopDir), modality))
	if monitorSession != "" {
		session.ID = monitorSession
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Open(ctx); err != nil {
		runner.Abort()
		return fail(err)
	}
	out.write(protocol.NewReadyMessage(session.ID, modality, os.Getpid()))
	logger.Info("monitor ready", "session", session.ID)

	if err := runner.Run(ctx, session); err != nil {
		logger.Error("monitor exited", "error", err)
		return err
	}
	logger.Info("monitor stopped", "session", session.ID, "events", session.Info().Events)
	return nil
}
