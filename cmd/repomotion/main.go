package main

import (
	"os"

	"github.com/repomotion/repomotion/internal/cmd"
)

// Stamped by the build with -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
