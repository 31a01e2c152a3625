// Package preflight verifies that the external collaborators the
// render pipeline shells out to are actually available. The daemon
// warns (rather than refusing to start) when a tool is missing, since
// the failure would otherwise only surface minutes into the first job.
package preflight

import (
	"context"
	"os/exec"
)

// Binaries returns the external tools the pipeline depends on.
func Binaries() []string {
	return []string{"git", "gource", "ffmpeg", "xvfb-run"}
}

// Result is one tool's availability check.
type Result struct {
	Binary    string `json:"binary"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

type runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Checker probes collaborator binaries.
type Checker struct {
	runner runner
}

func NewChecker() *Checker {
	return &Checker{runner: execRunner{}}
}

func NewCheckerForTests(r runner) *Checker {
	return &Checker{runner: r}
}

// Check probes every required binary with --version and reports each
// outcome. It never short-circuits; operators want the full list.
func (c *Checker) Check(ctx context.Context) []Result {
	results := make([]Result, 0, len(Binaries()))
	for _, bin := range Binaries() {
		res := Result{Binary: bin, Available: true}
		if err := c.runner.Run(ctx, bin, "--version"); err != nil {
			res.Available = false
			res.Detail = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// AllAvailable reports whether every check passed.
func AllAvailable(results []Result) bool {
	for _, r := range results {
		if !r.Available {
			return false
		}
	}
	return true
}
