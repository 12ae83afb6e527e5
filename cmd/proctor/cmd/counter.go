package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-proctor/internal/log"
	"github.com/teslashibe/go-proctor/pkg/counter"
)

var (
	counterTotal int
	eventsLimit  int
)

var counterCmd = &cobra.Command{
	Use:   "counter",
	Short: "Inspect or reset the suspicion counter",
	Long: `Inspect or reset the suspicion counter directly in its store.

These commands do not need a running server; they open the counter
backend named in the config.`,
}

var counterShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the suspicion count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := localStack()
		if err != nil {
			return err
		}
		defer st.Close()

		total := counterTotal
		if total == 0 {
			total = st.cfg.Server.Questions
		}
		n, err := st.counter.Read(context.Background())
		if err != nil {
			printError("Read counter", err)
			return err
		}
		fmt.Printf("🔢 Suspicion count: %d\n", n)
		if total > 0 {
			fmt.Printf("   %d%% of %d questions\n", counter.Percent(n, total), total)
		}
		return nil
	},
}

var counterResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the suspicion count to zero",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := localStack()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.counter.Reset(context.Background()); err != nil {
			printError("Reset counter", err)
			return err
		}
		fmt.Println("🧹 Suspicion count reset")
		return nil
	},
}

var counterEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent events from the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := localStack()
		if err != nil {
			return err
		}
		defer st.Close()

		if st.ledger == nil {
			err := fmt.Errorf("no event ledger configured (artifacts.ledger)")
			printError("Events", err)
			return err
		}
		events, err := st.ledger.Recent(context.Background(), eventsLimit)
		if err != nil {
			printError("Read ledger", err)
			return err
		}
		if len(events) == 0 {
			fmt.Println("📭 No events recorded")
			return nil
		}
		for _, ev := range events {
			printEvent(ev)
		}
		return nil
	},
}

func init() {
	counterShowCmd.Flags().IntVar(&counterTotal, "total", 0, "question count for the percentage (default: server.questions)")
	counterEventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "number of events to list")
	counterCmd.AddCommand(counterShowCmd, counterResetCmd, counterEventsCmd)
	rootCmd.AddCommand(counterCmd)
}

// localStack opens the configured stores without a notifier.
func localStack() (*stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		printError("Config", err)
		return nil, err
	}
	log.InitWriter(cfg.LogLevel, os.Stderr)
	st, err := openStack(cfg, nil, log.L())
	if err != nil {
		printError("Storage", err)
		return nil, err
	}
	return st, nil
}
