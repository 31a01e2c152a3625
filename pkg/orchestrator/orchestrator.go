// Package orchestrator drives one visualization job end to end:
// validate, decrypt, clone, analyze, render, and record every
// transition in the job registry.
//
// A job runs as a detached goroutine. The submission path only creates
// the registry entry and returns; the goroutine's sole externally
// observable outcome is the registry entry it mutates. Errors never
// propagate to any caller.
package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/repomotion/repomotion/pkg/gitfetch"
	"github.com/repomotion/repomotion/pkg/history"
	"github.com/repomotion/repomotion/pkg/jobregistry"
	"github.com/repomotion/repomotion/pkg/pacing"
	"github.com/repomotion/repomotion/pkg/render"
	"github.com/repomotion/repomotion/pkg/token"
)

// errWorkDir stands in for environment failures creating the clone
// workspace; it carries the caller-visible message.
var errWorkDir = errors.New("failed to create working directory")

// Cloner fetches a repository into a local directory.
type Cloner interface {
	Clone(ctx context.Context, repoURL, accessToken, dir string) error
}

// Analyzer derives commit counts from a cloned repository.
type Analyzer interface {
	Analyze(ctx context.Context, repoPath string) (history.Counts, error)
}

// Renderer executes the visualization pipeline.
type Renderer interface {
	Run(ctx context.Context, req render.Request) error
}

// Config tunes orchestration policy.
type Config struct {
	// OutputDir is where artifacts are written.
	OutputDir string

	// SecretKey decrypts caller-supplied access tokens.
	SecretKey string

	// HideFilenamesOver is the total-commit cutoff above which the
	// renderer hides filenames to limit visual clutter and load.
	HideFilenamesOver int

	// RateLimit bounds how fast detached jobs may start (clones hit the
	// hosting service). Zero means unlimited.
	RateLimit rate.Limit
	RateBurst int
}

// DefaultHideFilenamesOver is the filename-clutter cutoff.
const DefaultHideFilenamesOver = 100

// Orchestrator owns the background execution of jobs.
type Orchestrator struct {
	registry *jobregistry.Registry
	cloner   Cloner
	analyzer Analyzer
	renderer Renderer
	limiter  *rate.Limiter
	cfg      Config
	log      *zap.Logger

	wg sync.WaitGroup
}

func New(reg *jobregistry.Registry, c Cloner, a Analyzer, r Renderer, cfg Config, log *zap.Logger) *Orchestrator {
	if cfg.HideFilenamesOver <= 0 {
		cfg.HideFilenamesOver = DefaultHideFilenamesOver
	}
	o := &Orchestrator{
		registry: reg,
		cloner:   c,
		analyzer: a,
		renderer: r,
		cfg:      cfg,
		log:      log,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}
	return o
}

// SubmitRequest is a parsed job submission.
type SubmitRequest struct {
	RepoURL     string
	AccessToken string
	Settings    *render.Settings
}

// ArtifactName is the deterministic on-disk filename for a job's video.
func ArtifactName(jobID string) string {
	return "gource_" + jobID + ".mp4"
}

// VideoPath is the URL path a completed job advertises for its artifact.
func VideoPath(jobID string) string {
	return "/gource/video/" + jobID
}

// Submit creates the registry entry and detaches the job run. It never
// blocks on pipeline work and always returns a fresh job id.
func (o *Orchestrator) Submit(req SubmitRequest) string {
	job := o.registry.Create(req.RepoURL, req.Settings.Resolve())

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// Deliberately not the request context: the job outlives the
		// submission round trip.
		o.run(context.Background(), job.ID, req, job.Settings)
	}()

	return job.ID
}

// Wait blocks until all in-flight jobs finish. Used by shutdown and
// tests; new submissions during Wait are not accounted for.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// run executes the job lifecycle. Every failure is converted to a
// single caller-safe message in the registry; diagnostics stay in the
// log.
func (o *Orchestrator) run(ctx context.Context, jobID string, req SubmitRequest, settings render.Resolved) {
	start := time.Now()
	log := o.log.With(zap.String("job_id", jobID), zap.String("repo_url", req.RepoURL))
	log.Info("job started")

	if err := o.process(ctx, jobID, req, settings, log); err != nil {
		o.registry.Fail(jobID, failMessage(err))
		log.Warn("job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}

	log.Info("job finished", zap.Duration("elapsed", time.Since(start)))
}

func (o *Orchestrator) process(ctx context.Context, jobID string, req SubmitRequest, settings render.Resolved, log *zap.Logger) error {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	// Fail fast on bad input: no process spawned, no credential touched.
	if _, err := gitfetch.ValidateURL(req.RepoURL); err != nil {
		return err
	}

	accessToken := ""
	if req.AccessToken != "" {
		decrypted, err := token.Decrypt(req.AccessToken, o.cfg.SecretKey)
		if err != nil {
			return err
		}
		accessToken = decrypted
	}

	workDir, err := os.MkdirTemp("", "repomotion-*")
	if err != nil {
		log.Error("create working directory failed", zap.Error(err))
		return errWorkDir
	}
	defer func() {
		// The clone workspace is always reclaimed, success or failure.
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn("remove working directory failed", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	if err := o.cloner.Clone(ctx, req.RepoURL, accessToken, workDir); err != nil {
		return err
	}

	o.registry.Advance(jobID, jobregistry.StepAnalyzing)
	counts, err := o.analyzer.Analyze(ctx, workDir)
	if err != nil {
		return err
	}

	secondsPerDay := pacing.SecondsPerDay(counts.DistinctDays)
	hideFilenames := counts.TotalCommits > o.cfg.HideFilenamesOver
	log.Info("pacing computed",
		zap.Int("distinct_days", counts.DistinctDays),
		zap.Int("total_commits", counts.TotalCommits),
		zap.Float64("seconds_per_day", secondsPerDay),
		zap.Bool("hide_filenames", hideFilenames))

	o.registry.Advance(jobID, jobregistry.StepGenerating)
	outputPath := filepath.Join(o.cfg.OutputDir, ArtifactName(jobID))
	err = o.renderer.Run(ctx, render.Request{
		RepoDir:       workDir,
		RepoURL:       req.RepoURL,
		SecondsPerDay: secondsPerDay,
		HideFilenames: hideFilenames,
		Settings:      settings,
		OutputPath:    outputPath,
	})
	if err != nil {
		return err
	}

	o.registry.Complete(jobID, VideoPath(jobID))
	return nil
}

// failMessage maps a stage error to the fixed caller-visible message
// for its category. Anything unrecognized stays generic so environment
// details never leak through the status API.
func failMessage(err error) string {
	for _, known := range []error{
		gitfetch.ErrInvalidURL,
		gitfetch.ErrUnsupportedRepository,
		gitfetch.ErrCloneFailed,
		token.ErrDecryptionFailed,
		errWorkDir,
		history.ErrCommitCountFailed,
		render.ErrGenerationFailed,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}
