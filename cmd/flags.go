package cmd

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type cliFlag struct {
	name      string // name of flag
	val       string // default value
	shortHand string // single character name for the flag
	desc      string // description of the flag; the long text
}

type cliFlags map[string]cliFlag

var switches = cliFlags{
	"log-level": cliFlag{name: "log-level", shortHand: "l",
		desc: "Log level: \"error | warn | info | debug\""},
	"incremental": cliFlag{name: "incremental", shortHand: "i",
		desc: "Load only measurements newer than the latest raw date. The complete \n" +
			"current-year partition is re-uploaded first so each S3 object stays a \n" +
			"full replacement, never a delta"},
	"initial-rows": cliFlag{name: "initial-rows", shortHand: "R",
		desc: "Create the raw change stream with SHOW_INITIAL_ROWS so the first \n" +
			"consumption replays all existing raw rows. Only meaningful the first \n" +
			"time the stream is created"},
	"port": cliFlag{name: "port", shortHand: "p",
		desc: "Port to listen on"},
}

// addFlag adds a flag to cobra.Command c, based on the type of targetVar (which must be a pointer).
// The name of the flag is looked up in map, cliFlags.
// The flag is marked as required in Cobra based on the value of required.
func (f cliFlags) addFlag(c *cobra.Command, targetVar interface{}, name string, defaultValue string, required bool) {
	v := reflect.ValueOf(targetVar)
	if v.Kind() != reflect.Ptr {
		fmt.Println("error adding flag: targetVar must be a pointer")
		os.Exit(1)
	}
	sw, ok := f[name]
	if !ok {
		fmt.Printf("error adding flag: unknown flag name %q\n", name)
		os.Exit(1)
	}
	if defaultValue != "" {
		sw.val = defaultValue
	}
	// Apply the flag.
	switch p := targetVar.(type) {
	case *string:
		c.Flags().StringVarP(p, sw.name, sw.shortHand, sw.val, sw.desc)
	case *bool:
		c.Flags().BoolVarP(p, sw.name, sw.shortHand, strings.ToLower(sw.val) == "true", sw.desc)
	case *int:
		defaultInt, err := strconv.Atoi(sw.val)
		if err != nil {
			fmt.Printf("the value for flag %q must be an integer: %v\n", sw.name, err)
			os.Exit(1)
		}
		c.Flags().IntVarP(p, sw.name, sw.shortHand, defaultInt, sw.desc)
	default:
		panic("Error: unhandled CLI flag target value type")
	}
	// Optionally mark the flag as mandatory.
	if required { // if the flag is required...
		_ = c.MarkFlagRequired(sw.name)
	}
}
