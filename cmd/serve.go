package cmd

import (
	"net"

	"github.com/relloyd/co2pipe/actions"
	"github.com/relloyd/co2pipe/config"

	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a web service and listen for pipeline commands described in JSON",
	Long: `Start a web service exposing the pipeline actions via a RESTful API. POST a
JSON body naming an action to /launch, then poll /runs/{runId}/status for the
outcome and /runs/{runId}/stats for per-stage timings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		serveConfig.Pipeline = cfg
		serveConfig.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunWebServer(&serveConfig)
	},
}

var serveConfig = actions.WebServerConfig{
	LogLevel: "info",
	Scheme:   "http",
	Addr:     net.IP{0, 0, 0, 0},
	Port:     8080,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().SortFlags = false
	serveCmd.Flags().IPVarP(&serveConfig.Addr, "address", "a", net.IP{0, 0, 0, 0}, "Address to listen on")
	switches.addFlag(serveCmd, &serveConfig.Port, "port", "8080", false)
	switches.addFlag(serveCmd, &serveConfig.LogLevel, "log-level", "info", false)
}
