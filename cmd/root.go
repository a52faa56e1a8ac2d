package cmd

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

var (
	// Default values may be set at compile time.
	version          = "0.1.0"
	buildDate        = "2024-01-02T03:04+0500"
	stackDumpOnPanic bool
)

var rootCmd = &cobra.Command{
	Use: "co2pipe",
	Long: `
  _________  ________         .__
 \_   ___ \ \_____  \  ______ |__|_____   ____
 /    \  \/  /   |   \ \____ \|  |\____ \_/ __ \
 \     \____/    |    \|  |_> >  ||  |_> >  ___/
  \______  /\_______  /|   __/|__||   __/ \___  >
         \/         \/ |__|       |__|        \/

co2pipe moves the NOAA Mauna Loa daily CO2 series into a Snowflake warehouse.
It fetches the feed, partitions it by year into S3, copies the partitions into
a raw landing table, merges validated changes into a harmonized table keyed on
date and derives daily and weekly analytics. Run the stages one at a time or
chain them all with the 'pipeline' command. Start an HTTP server to expose the
same actions via a RESTful API.`,
}

func init() {
	// General setup.
	cobra.EnableCommandSorting = false
	// Global flags.
	rootCmd.PersistentFlags().BoolVar(&stackDumpOnPanic, "print-stack", false, "Print a stack dump if there is a panic")
	_ = rootCmd.PersistentFlags().MarkHidden("print-stack")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if lambdaMode { // if we should handle lambda execution...
		lambda.Start(func() error { return executeLambdaMode(lambdaActions) })
	} else { // else we're using CLI args and flags via Cobra...
		if err := rootCmd.Execute(); err != nil {
			// Execute() prints the error.
			os.Exit(1)
		}
	}
}
