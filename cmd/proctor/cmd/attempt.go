package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-proctor/internal/httpc"
	"github.com/teslashibe/go-proctor/pkg/monitor"
	"github.com/teslashibe/go-proctor/pkg/proctor"
)

var serverAddr string

// addServerFlag registers --server on commands that talk to a daemon.
func addServerFlag(c *cobra.Command) {
	c.Flags().StringVar(&serverAddr, "server", "", "daemon address (default: server.addr from config)")
}

// api returns a client for the running daemon.
func api() (*httpc.API, error) {
	if serverAddr != "" {
		return httpc.NewAPI(serverAddr), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return httpc.NewAPI(cfg.Server.Addr), nil
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

var beginCmd = &cobra.Command{
	Use:   "begin",
	Short: "Begin a quiz attempt on the running server",
	Long: `Reset the suspicion counter and start every enabled monitor.

A monitor whose device cannot be opened is reported and the attempt
continues with the others.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := api()
		if err != nil {
			printError("Config", err)
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()

		var res monitor.AttemptResult
		if err := client.Post(ctx, "/api/attempts", &res); err != nil {
			printError("Begin attempt", err)
			return err
		}
		fmt.Println("📝 Attempt started")
		printAttempt(res)
		return nil
	},
}

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "End the quiz attempt and stop all monitors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := api()
		if err != nil {
			printError("Config", err)
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()

		var st monitor.Status
		if err := client.Delete(ctx, "/api/attempts", &st); err != nil {
			printError("End attempt", err)
			return err
		}
		fmt.Println("🏁 Attempt ended")
		printStatus(st)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitor states and the suspicion count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := api()
		if err != nil {
			printError("Config", err)
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()

		var st monitor.Status
		if err := client.Get(ctx, "/api/status", &st); err != nil {
			printError("Status", err)
			return err
		}
		fmt.Printf("🎓 Proctor at %s\n", client.Base())
		printStatus(st)
		return nil
	},
}

var ctlCmd = &cobra.Command{
	Use:       "ctl <start|stop|restart> <visual|audio>",
	Short:     "Start, stop or restart one monitor on the running server",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"start", "stop", "restart"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := args[0]
		switch action {
		case "start", "stop", "restart":
		default:
			return fmt.Errorf("unknown action %q", action)
		}
		modality, ok := proctor.ParseModality(args[1])
		if !ok {
			return fmt.Errorf("%w: %q", monitor.ErrUnknownModality, args[1])
		}

		client, err := api()
		if err != nil {
			printError("Config", err)
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()

		var ms monitor.MonitorStatus
		if err := client.Post(ctx, fmt.Sprintf("/api/monitors/%s/%s", modality, action), &ms); err != nil {
			printError(action+" "+string(modality), err)
			return err
		}
		printMonitor(ms)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{beginCmd, endCmd, statusCmd, ctlCmd} {
		addServerFlag(c)
		rootCmd.AddCommand(c)
	}
}

func printStatus(st monitor.Status) {
	for _, ms := range st.Monitors {
		printMonitor(ms)
	}
	fmt.Printf("   🔢 Suspicion count: %d\n", st.Count)
}

func printMonitor(ms monitor.MonitorStatus) {
	icon := "⏸️ "
	if ms.Running {
		icon = "🟢"
	}
	fmt.Printf("   %s %-6s %s", icon, ms.Modality, ms.State)
	if s := ms.Session; s != nil {
		fmt.Printf("  session=%s events=%d", s.ID, s.Events)
		if s.Threshold != nil {
			fmt.Printf(" threshold=%.4f", *s.Threshold)
		}
		if s.LastError != "" {
			fmt.Printf(" error=%q", s.LastError)
		}
	}
	fmt.Println()
}
