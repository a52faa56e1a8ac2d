package cmd

import (
	"fmt"

	"github.com/relloyd/co2pipe/actions"
	"github.com/relloyd/co2pipe/config"
	"github.com/relloyd/co2pipe/logger"
)

var logLevel = "info"

// runAction loads the pipeline config, applies any command-specific mutations
// and executes one action, printing its status line on success. Shared by all
// the stage commands.
func runAction(fn func(rt *actions.Runtime, cfg *config.Config) (string, error), mutate ...func(cfg *config.Config)) error {
	log := logger.NewLogger("co2pipe", logLevel, stackDumpOnPanic)
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	for _, m := range mutate {
		m(cfg)
	}
	status, err := fn(actions.NewRuntime(log), cfg)
	if err != nil {
		return err
	}
	fmt.Println(status)
	return nil
}
