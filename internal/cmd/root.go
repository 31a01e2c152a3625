// Package cmd wires the repomotion command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// versionInfo is stamped by the build via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "repomotion",
	Short: "Render git repository history as video",
	Long: `repomotion runs git history through gource and ffmpeg to produce
an mp4 visualization, driven by an HTTP job API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

// SetVersionInfo records build metadata before Execute.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}
