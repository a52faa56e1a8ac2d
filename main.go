package main

import "github.com/relloyd/co2pipe/cmd"

func main() {
	cmd.Execute()
}
