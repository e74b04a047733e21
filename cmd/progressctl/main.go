// Command progressctl drives the tracker from a terminal: start and stop
// cards, read totals and skill progress, and run database migrations.
package main

import (
	"fmt"
	"os"
)

var Version = "dev"

func main() {
	if err := newRootCmd(newCLI()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
