package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-proctor/internal/config"
	"github.com/teslashibe/go-proctor/internal/log"
	"github.com/teslashibe/go-proctor/pkg/audioio"
	"github.com/teslashibe/go-proctor/pkg/hub"
	"github.com/teslashibe/go-proctor/pkg/monitor"
	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/vision"
	"github.com/teslashibe/go-proctor/pkg/web"
)

var (
	serveAddr  string
	serveBegin bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control server",
	Long: `Run the control server a quiz UI talks to.

The server exposes the attempt lifecycle over HTTP and a control
websocket, streams live events on /ws/events and serves Prometheus
metrics on /metrics. Monitors only run between begin and end.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveBegin, "begin", false, "begin an attempt as soon as the server is up")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("Config", err)
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	log.Init(cfg.LogLevel)
	logger := log.L()

	events := hub.New("events", cfg.Server.History, logger)

	st, err := openStack(cfg, events, logger)
	if err != nil {
		printError("Storage", err)
		return err
	}
	defer st.Close()

	factory := func(m proctor.Modality) monitor.UnitFactory {
		return monitor.GoroutineUnits(func(s *monitor.Session) (monitor.Runner, error) {
			return st.newRunner(m)
		})
	}
	if cfg.Lifecycle.Isolation == config.IsolationProcess {
		pc := processConfig(cfg, st, events)
		factory = func(proctor.Modality) monitor.UnitFactory {
			return monitor.ProcessUnits(pc)
		}
	}

	var controllers []*monitor.Controller
	for _, m := range enabled(cfg) {
		controllers = append(controllers, monitor.NewController(monitor.ControllerConfig{
			Modality:    m,
			NewUnit:     factory(m),
			Grace:       cfg.Lifecycle.Grace,
			KillTimeout: cfg.Lifecycle.KillTimeout,
			Metrics:     st.metrics,
			Logger:      logger,
		}))
	}
	p := monitor.NewProctor(st.counter, st.metrics, logger, controllers...)

	server := web.NewServer(web.Config{
		Addr:    cfg.Server.Addr,
		Proctor: p,
		Hub:     events,
		Metrics: st.metrics,
		Ledger:  st.ledger,
		Total:   cfg.Server.Questions,
		Logger:  logger,
	})

	fmt.Println("🎓 Proctor control server")
	fmt.Printf("   Listening:  %s\n", cfg.Server.Addr)
	fmt.Printf("   Monitors:   %v (%s isolation)\n", enabled(cfg), cfg.Lifecycle.Isolation)
	fmt.Printf("   Counter:    %s\n", cfg.Counter.Backend)
	fmt.Printf("   Backends:   audio %v, opencv %v\n", audioio.AvailableBackends(), vision.Available())
	fmt.Printf("   Artifacts:  %s, %s\n", cfg.Path(cfg.Artifacts.ImageDir), cfg.Path(cfg.Artifacts.AudioDir))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("\n🛑 Shutting down...")
		if err := p.EndAttempt(); err != nil {
			logger.Warn("monitors did not stop cleanly", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if serveBegin {
		res, err := p.BeginAttempt(ctx)
		if err != nil {
			printError("Begin attempt", err)
		} else {
			printAttempt(res)
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		printError("Server", err)
		return err
	}
	fmt.Println("👋 Bye")
	return nil
}

// processConfig builds the child process settings. Children record into
// the same counter and artifact directories; the parent relays their
// events to the hub.
func processConfig(cfg *config.Config, st *stack, events *hub.Hub) monitor.ProcessConfig {
	var args []string
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if verbose {
		args = append(args, "--verbose")
	}
	return monitor.ProcessConfig{
		Args:         args,
		ReadyTimeout: cfg.Lifecycle.ReadyTimeout,
		StopDir:      cfg.Path(cfg.Lifecycle.StopDir),
		OnEvent: func(ev proctor.Event) {
			st.metrics.Event(string(ev.Modality), string(ev.Type))
			if ev.Type.Counted() {
				st.metrics.SetCount(ev.Count)
			}
			events.Publish(ev)
		},
		Logger: st.logger,
	}
}

func printAttempt(res monitor.AttemptResult) {
	for _, m := range res.Started {
		fmt.Printf("   ✅ %s monitor running\n", m)
	}
	for m, reason := range res.Failed {
		fmt.Printf("   ⚠️  %s monitor unavailable: %s\n", m, reason)
	}
}
