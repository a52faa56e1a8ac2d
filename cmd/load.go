package cmd

import (
	"github.com/relloyd/co2pipe/actions"
	"github.com/relloyd/co2pipe/config"
	"github.com/spf13/cobra"
)

var loadIncremental bool

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Copy S3 year partitions into the Snowflake raw table",
	Long: `Copy the year partitions found in the S3 bucket into the raw landing table via
the external stage. The raw change stream is created before the first COPY so
every landed row is captured for the harmonized merge. Use --incremental to
load only measurements newer than the latest raw date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loadIncremental { // if only new measurements should be loaded...
			return runAction(actions.RunLoadIncremental, applyLoadFlags)
		}
		return runAction(actions.RunLoadRaw, applyLoadFlags)
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().SortFlags = false
	switches.addFlag(loadCmd, &loadIncremental, "incremental", "false", false)
	switches.addFlag(loadCmd, &loadShowInitialRows, "initial-rows", "false", false)
	switches.addFlag(loadCmd, &logLevel, "log-level", "info", false)
}

var loadShowInitialRows bool

// applyLoadFlags folds load-only flags into the pipeline config.
func applyLoadFlags(cfg *config.Config) {
	if loadShowInitialRows {
		cfg.StreamShowInitialRows = true
	}
}
