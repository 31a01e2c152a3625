package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/repomotion/repomotion/pkg/preflight"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Check that the external tools the render pipeline shells out to
are installed and answer --version.

Examples:
  repomotion doctor`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "repomotion %s (%s/%s)\n\n", versionInfo.Version, runtime.GOOS, runtime.GOARCH)

	results := preflight.NewChecker().Check(cmd.Context())
	for _, res := range results {
		mark := "ok"
		if !res.Available {
			mark = "MISSING"
		}
		fmt.Fprintf(out, "  %-10s %s", res.Binary, mark)
		if res.Detail != "" && !res.Available {
			fmt.Fprintf(out, " (%s)", res.Detail)
		}
		fmt.Fprintln(out)
	}

	if !preflight.AllAvailable(results) {
		return fmt.Errorf("one or more required tools are missing")
	}
	fmt.Fprintln(out, "\nall checks passed")
	return nil
}
