package cli

import (
	"github.com/spf13/cobra"

	"busmon-analytics/internal/app"
)

var (
	voltageColumn    string
	voltageWorkers   int
	voltageNoPersist bool
)

var voltageCmd = &cobra.Command{
	Use:   "voltage <file.csv>...",
	Short: "Flag anomalous steady-state voltage segments",
	Long: `Computes per-run, per-label voltage statistics, derives dynamic thresholds
per (ofp, test_case) from a baseline pass, then flags steady-state segments
failing every tracked metric.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.VoltageOptions{
			Inputs:        args,
			VoltageColumn: voltageColumn,
			Workers:       voltageWorkers,
			OutputDir:     outDir,
			NoPersist:     voltageNoPersist,
		}
		_, err := getApp().AnalyzeVoltage(cmd.Context(), opts)
		return err
	},
}

func init() {
	voltageCmd.Flags().StringVar(&voltageColumn, "voltage-column", "", "Voltage column to analyse (default from config)")
	voltageCmd.Flags().IntVar(&voltageWorkers, "workers", 0, "Concurrent run workers (default from config)")
	voltageCmd.Flags().BoolVar(&voltageNoPersist, "no-persist", false, "Skip database persistence even when configured")
}
