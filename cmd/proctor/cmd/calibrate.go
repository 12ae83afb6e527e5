package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-proctor/internal/log"
	"github.com/teslashibe/go-proctor/pkg/audioio"
)

var calibrateWindow time.Duration

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Measure room noise and print the loudness threshold",
	Long: `Record the configured calibration window from the microphone and
print the ambient level and the threshold the audio monitor would use.
Nothing is counted or saved. Keep the room as it will be during the quiz.`,
	Args: cobra.NoArgs,
	RunE: runCalibrate,
}

func init() {
	calibrateCmd.Flags().DurationVar(&calibrateWindow, "window", 0, "calibration window (default: audio.calibration.window)")
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("Config", err)
		return err
	}
	log.InitWriter(cfg.LogLevel, os.Stderr)

	cal := cfg.Audio.Loop.Calibration
	if calibrateWindow > 0 {
		cal.Window = calibrateWindow
	}

	src, err := audioio.NewSource(cfg.Audio.Source, log.L())
	if err != nil {
		printError("Microphone", err)
		return err
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := src.Start(ctx); err != nil {
		printError("Microphone", err)
		return err
	}

	fmt.Printf("🎙️  Listening for %v on %s...\n", cal.Window, src.Name())
	b, err := cal.Calibrate(ctx, src, nil)
	if err != nil {
		printError("Calibration", err)
		return err
	}

	fmt.Printf("   Ambient RMS: %.5f (%d samples)\n", b.RMS, b.Samples)
	fmt.Printf("   Threshold:   %.5f (x%.2f)\n", b.Threshold, cal.Multiplier)
	return nil
}
