package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/relloyd/co2pipe/actions"
	"github.com/relloyd/co2pipe/config"
	c "github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/helper"
	"github.com/relloyd/co2pipe/logger"
)

// init will be called first due to the lexical order in which these functions are executed.
// This ensures the value of lambdaMode is set before Execute() decides whether to hand
// control to the AWS Lambda runtime or to Cobra.
func init() {
	setupLambdaMode()
}

// setupLambdaMode will enable or disable lambda mode based on environment variable.
func setupLambdaMode() {
	mode := os.Getenv(c.EnvVarLambdaMode)
	if mode != "" && strings.ToLower(mode) != "false" { // if variable for lambda mode is set...
		lambdaMode = true
	} else { // else lambda mode should be off...
		lambdaMode = false // explicitly turn off this mode since tests may have turned it on while others require it off.
	}
}

const (
	envVarCommand  = c.EnvVarPrefix + "_" + "COMMAND"
	envVarLogLevel = c.EnvVarPrefix + "_" + "LOG_LEVEL"
)

var (
	lambdaMode bool // true if os env var c.EnvVarLambdaMode is set

	lambdaActions = map[string]func(rt *actions.Runtime, cfg *config.Config) (string, error){
		"fetch":            actions.RunFetchUpload,
		"load":             actions.RunLoadRaw,
		"load-incremental": actions.RunLoadIncremental,
		"merge":            actions.RunMergeHarmonized,
		"analytics":        actions.RunDeriveAnalytics,
		"pipeline":         actions.RunPipeline,
	}
)

// executeLambdaMode runs the action named by the CO2PIPE_COMMAND environment
// variable. All pipeline settings come from the environment in this mode; the
// bucket, DSN and warehouse are read via config.Load().
func executeLambdaMode(acts map[string]func(rt *actions.Runtime, cfg *config.Config) (string, error)) error {
	logLevel := helper.ReadValueFromEnvWithDefault(envVarLogLevel, "info")
	log := logger.NewLogger("co2pipe", logLevel, stackDumpOnPanic)
	log.Info("co2pipe is running in lambda mode...")
	command, err := helper.GetEnvVar(envVarCommand, true)
	if err != nil {
		log.Error(err.Error())
		return err
	}
	fn, ok := acts[command]
	if !ok {
		err := fmt.Errorf("invalid command %q supplied in %v", command, envVarCommand)
		log.Error(err.Error())
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		log.Error("Error: ", err)
		return err
	}
	status, err := fn(actions.NewRuntime(log), cfg)
	if err != nil {
		log.Error("Error: ", err)
		return err
	}
	log.Info(status)
	return nil
}
