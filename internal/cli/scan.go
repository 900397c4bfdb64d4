package cli

import (
	"github.com/spf13/cobra"

	"busmon-analytics/internal/app"
)

var countCmd = &cobra.Command{
	Use:   "count [dir]",
	Short: "Count decoded descriptions containing the configured needle",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := getApp().Count(cmd.Context(), app.ScanOptions{Dir: dirArg(args), OutputDir: outDir})
		return err
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources [dir]",
	Short: "Flag source listings containing watched save numbers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := getApp().Sources(cmd.Context(), app.ScanOptions{Dir: dirArg(args), OutputDir: outDir})
		return err
	},
}

func dirArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}
