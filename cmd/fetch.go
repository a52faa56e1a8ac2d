package cmd

import (
	"github.com/relloyd/co2pipe/actions"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the NOAA daily CO2 feed and upload year partitions to S3",
	Long: `Fetch the NOAA daily CO2 feed, split it into one CSV per year and replace the
year partitions in the S3 bucket. Each partition holds the complete data for
its year so reruns are safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(actions.RunFetchUpload)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().SortFlags = false
	switches.addFlag(fetchCmd, &logLevel, "log-level", "info", false)
}
