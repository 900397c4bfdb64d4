package cli

import (
	"github.com/spf13/cobra"

	"busmon-analytics/internal/app"
)

var (
	flipThresholdMS float64
	flipWorkers     int
	flipNoPersist   bool
)

var flipsCmd = &cobra.Command{
	Use:   "flips <file.csv>...",
	Short: "Detect rapid bus A/B flips carrying duplicate payloads",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.FlipOptions{
			Inputs:      args,
			ThresholdMS: flipThresholdMS,
			Workers:     flipWorkers,
			OutputDir:   outDir,
			NoPersist:   flipNoPersist,
		}
		_, err := getApp().DetectFlips(cmd.Context(), opts)
		return err
	},
}

var gapsCmd = &cobra.Command{
	Use:   "gaps <file.csv>...",
	Short: "Summarise inter-message timing per unit, station and save",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := getApp().Gaps(cmd.Context(), app.GapOptions{Inputs: args, OutputDir: outDir})
		return err
	},
}

func init() {
	flipsCmd.Flags().Float64Var(&flipThresholdMS, "threshold-ms", 0, "Widest gap in milliseconds still counted as a flip (default from config)")
	flipsCmd.Flags().IntVar(&flipWorkers, "workers", 0, "Concurrent group workers (default from config)")
	flipsCmd.Flags().BoolVar(&flipNoPersist, "no-persist", false, "Skip database persistence even when configured")
}
