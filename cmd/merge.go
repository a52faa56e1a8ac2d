package cmd

import (
	"github.com/relloyd/co2pipe/actions"
	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge validated raw changes into the harmonized table",
	Long: `Consume the pending window from the raw change stream, validate every record
and merge the valid subset into the harmonized table keyed on date. The merge
and the stream consumption commit in one transaction, so a window is either
fully applied or fully replayed on the next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(actions.RunMergeHarmonized)
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().SortFlags = false
	switches.addFlag(mergeCmd, &logLevel, "log-level", "info", false)
}
