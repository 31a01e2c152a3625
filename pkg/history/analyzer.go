// Package history derives pacing inputs from a cloned repository's
// commit log: how many commits exist and how many distinct calendar
// days contain at least one commit.
package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrCommitCountFailed means the git log queries could not produce
// usable counts (non-zero exit or unparseable output).
var ErrCommitCountFailed = errors.New("failed to count commits")

// Counts is the analyzer's output: inputs to pacing and clutter policy.
type Counts struct {
	// DistinctDays is the number of unique calendar dates with commits.
	DistinctDays int

	// TotalCommits is the total number of commits reachable from HEAD.
	TotalCommits int
}

type runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Analyzer queries a repository's history through the git binary.
type Analyzer struct {
	gitPath string
	runner  runner
	log     *zap.Logger
}

func NewAnalyzer(log *zap.Logger) *Analyzer {
	return &Analyzer{gitPath: "git", runner: execRunner{}, log: log}
}

func NewAnalyzerForTests(gitPath string, r runner, log *zap.Logger) *Analyzer {
	return &Analyzer{gitPath: gitPath, runner: r, log: log}
}

// Analyze returns commit counts for the repository at repoPath.
//
// The total count is a hard parse: non-numeric output fails. Per-commit
// date lines that do not parse as YYYY-MM-DD are skipped silently; odd
// log formatting should not kill a job.
func (a *Analyzer) Analyze(ctx context.Context, repoPath string) (Counts, error) {
	stdout, stderr, err := a.runner.Run(ctx, repoPath, a.gitPath, "rev-list", "--count", "HEAD")
	if err != nil {
		a.log.Error("git rev-list failed", zap.String("repo", repoPath), zap.String("stderr", stderr), zap.Error(err))
		return Counts{}, fmt.Errorf("%w: rev-list exited abnormally", ErrCommitCountFailed)
	}

	total, err := strconv.Atoi(strings.TrimSpace(stdout))
	if err != nil {
		return Counts{}, fmt.Errorf("%w: unparseable commit count %q", ErrCommitCountFailed, strings.TrimSpace(stdout))
	}

	stdout, stderr, err = a.runner.Run(ctx, repoPath, a.gitPath, "log", "--format=%ad", "--date=short")
	if err != nil {
		a.log.Error("git log failed", zap.String("repo", repoPath), zap.String("stderr", stderr), zap.Error(err))
		return Counts{}, fmt.Errorf("%w: log exited abnormally", ErrCommitCountFailed)
	}

	days := make(map[string]struct{})
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", line); err != nil {
			continue
		}
		days[line] = struct{}{}
	}

	counts := Counts{DistinctDays: len(days), TotalCommits: total}
	a.log.Info("analyzed history",
		zap.String("repo", repoPath),
		zap.Int("distinct_days", counts.DistinctDays),
		zap.Int("total_commits", counts.TotalCommits))
	return counts, nil
}
