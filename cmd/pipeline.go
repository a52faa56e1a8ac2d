package cmd

import (
	"github.com/relloyd/co2pipe/actions"
	"github.com/spf13/cobra"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the full fetch, load, merge and analytics pipeline",
	Long: `Run all four pipeline stages in order: fetch the feed and upload year
partitions, copy them into the raw table, merge validated changes into the
harmonized table and rebuild the analytics tables. The first stage failure
aborts the rest; completed stages keep their effects and every stage is
idempotent, so a failed pipeline can simply be run again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(actions.RunPipeline)
	},
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.Flags().SortFlags = false
	switches.addFlag(pipelineCmd, &logLevel, "log-level", "info", false)
}
