package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"busmon-analytics/internal/app"
	"busmon-analytics/internal/config"
	"busmon-analytics/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	outDir    string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:           "busmon",
	Short:         "Batch analytics for bus-monitor telemetry exports",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger := logging.NewLogger(cfg.Logging)
		appHandle = app.NewApp(cfg, logger)
		appHandle.Out = cmd.OutOrStdout()
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")
	rootCmd.PersistentFlags().StringVar(&outDir, "out", "", "Override output.dir for written tables")

	rootCmd.AddCommand(voltageCmd)
	rootCmd.AddCommand(flipsCmd)
	rootCmd.AddCommand(gapsCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(notifyTestCmd)
	rootCmd.AddCommand(versionCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}
