package main

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/codefmt/codefmt/cmd"
)

func main() {
	// logs go to stderr, stats go to stdout
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)

	root, _ := cmd.NewRoot()

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
