package cmd

import (
	"github.com/relloyd/co2pipe/actions"
	"github.com/spf13/cobra"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Rebuild the daily and weekly analytics tables",
	Long: `Rebuild the daily and weekly analytics tables from the full harmonized
history. Both tables are replaced wholesale each run so the derived metrics
always agree with the harmonized data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(actions.RunDeriveAnalytics)
	},
}

func init() {
	rootCmd.AddCommand(analyticsCmd)
	analyticsCmd.Flags().SortFlags = false
	switches.addFlag(analyticsCmd, &logLevel, "log-level", "info", false)
}
