package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-proctor/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "proctor",
	Short: "Quiz proctoring monitor",
	Long: `proctor watches a quiz taker through the webcam and microphone.

The visual monitor flags head movement and extra faces; the audio monitor
flags sound louder than the calibrated room noise. Every flagged event is
saved as evidence and counted for the quiz session.

Commands:
  serve      - run the control server for a quiz UI
  monitor    - run one monitor in the foreground
  begin/end  - start or finish a quiz attempt on a running server
  status     - show monitor states and the suspicion count
  counter    - inspect or reset the suspicion counter
  watch      - stream live events from a running server
  calibrate  - measure room noise and print the audio threshold`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig reads the config file and applies --verbose.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "❌ %s: %v\n", msg, err)
}
