// Package render builds and executes the two-stage visualization
// pipeline: gource emits raw frames on stdout, ffmpeg consumes them on
// stdin and writes the compressed video. The stages are connected by a
// streaming OS pipe; no intermediate frame file ever touches disk.
//
// gource needs graphics capability, so it runs under xvfb-run when no
// real display exists.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrGenerationFailed means the pipeline could not be spawned or either
// stage exited non-zero. Partial output files are not cleaned up here;
// a failed job simply has no valid artifact.
var ErrGenerationFailed = errors.New("failed to generate visualization")

// fallbackTitle is used when the repository URL does not yield at least
// an owner and a name.
const fallbackTitle = "git history ⋅ repomotion"

// Title derives the on-screen video title from the repository address:
// the last two path segments joined, suffixed with the product name.
func Title(repoURL string) string {
	u, err := url.Parse(repoURL)
	if err != nil {
		return fallbackTitle
	}
	segments := make([]string, 0, 4)
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) < 2 {
		return fallbackTitle
	}
	owner := segments[len(segments)-2]
	name := strings.TrimSuffix(segments[len(segments)-1], ".git")
	return owner + "/" + name + " ⋅ repomotion"
}

// Request parameterizes one pipeline run. HideFilenames is policy
// computed by the orchestrator from total commit count, not decided
// here.
type Request struct {
	RepoDir       string
	RepoURL       string
	SecondsPerDay float64
	HideFilenames bool
	Settings      Resolved
	OutputPath    string
}

// RendererArgs builds the gource invocation for req. The leading
// "-a gource" pair belongs to the xvfb-run wrapper.
func RendererArgs(req Request) []string {
	args := []string{
		"-a", "gource",
		req.RepoDir,
		"-1920x1200",
		"--seconds-per-day", strconv.FormatFloat(req.SecondsPerDay, 'f', -1, 64),
		"--auto-skip-seconds", "0.01",
		"--title", Title(req.RepoURL),
		"--hide", strings.Join(hideTargets(req), ","),
		"--max-user-speed", "500",
		"--output-framerate", "30",
		"--multi-sampling",
		"--bloom-intensity", "0.2",
		"--user-scale", "0.75",
		"--elasticity", "0.01",
		"--background-colour", "000000",
		"--dir-font-size", strconv.Itoa(req.Settings.DirFontSize),
		"--file-font-size", strconv.Itoa(req.Settings.FileFontSize),
		"--user-font-size", strconv.Itoa(req.Settings.UserFontSize),
		"--stop-at-end",
	}
	if req.Settings.ShowKey {
		args = append(args, "--key")
	}
	args = append(args, "-o", "-")
	return args
}

// hideTargets collects the --hide list: the progress bar always, the
// rest per policy and settings.
func hideTargets(req Request) []string {
	hide := []string{"progress"}
	if req.HideFilenames {
		hide = append(hide, "filenames")
	}
	if !req.Settings.ShowUsernames {
		hide = append(hide, "usernames")
	}
	if !req.Settings.ShowDirnames {
		hide = append(hide, "dirnames")
	}
	return hide
}

// EncoderArgs builds the ffmpeg invocation reading the frame stream on
// stdin and writing the final container to the output path.
func EncoderArgs(outputPath string) []string {
	return []string{
		"-y",
		"-r", "30",
		"-f", "image2pipe",
		"-vcodec", "ppm",
		"-i", "-",
		"-vcodec", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-acodec", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-pix_fmt", "yuv420p",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		outputPath,
	}
}

// Pipeline executes renderer-into-encoder runs. Binary paths are
// injectable so tests can substitute harmless commands.
type Pipeline struct {
	xvfbRunPath string
	ffmpegPath  string
	log         *zap.Logger
}

func NewPipeline(log *zap.Logger) *Pipeline {
	return &Pipeline{xvfbRunPath: "xvfb-run", ffmpegPath: "ffmpeg", log: log}
}

func NewPipelineForTests(xvfbRunPath, ffmpegPath string, log *zap.Logger) *Pipeline {
	return &Pipeline{xvfbRunPath: xvfbRunPath, ffmpegPath: ffmpegPath, log: log}
}

// Run executes the pipeline to completion. This is the longest-running
// call in the system; callers must keep it off any path that holds the
// registry lock.
func (p *Pipeline) Run(ctx context.Context, req Request) error {
	renderer := exec.CommandContext(ctx, p.xvfbRunPath, RendererArgs(req)...)
	encoder := exec.CommandContext(ctx, p.ffmpegPath, EncoderArgs(req.OutputPath)...)

	var rendererErr, encoderErr bytes.Buffer
	renderer.Stderr = &rendererErr
	encoder.Stderr = &encoderErr

	// Explicit pipe rather than StdoutPipe: once both children hold
	// their ends, the parent copies must be closed, or a dead encoder
	// never delivers EPIPE to the renderer and the pipeline hangs with
	// the renderer blocked on a full pipe buffer.
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("%w: connect pipe: %v", ErrGenerationFailed, err)
	}
	renderer.Stdout = pw
	encoder.Stdin = pr

	start := time.Now()
	if err := encoder.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("%w: start encoder: %v", ErrGenerationFailed, err)
	}
	if err := renderer.Start(); err != nil {
		// Closing the write end gives the encoder EOF on stdin; reap it.
		pw.Close()
		pr.Close()
		_ = encoder.Wait()
		return fmt.Errorf("%w: start renderer: %v", ErrGenerationFailed, err)
	}
	pw.Close()
	pr.Close()

	renderWaitErr := renderer.Wait()
	encodeWaitErr := encoder.Wait()

	if renderWaitErr != nil || encodeWaitErr != nil {
		p.log.Error("render pipeline failed",
			zap.String("output", req.OutputPath),
			zap.NamedError("renderer", renderWaitErr),
			zap.NamedError("encoder", encodeWaitErr),
			zap.String("renderer_stderr", tail(rendererErr.String())),
			zap.String("encoder_stderr", tail(encoderErr.String())))
		return fmt.Errorf("%w: pipeline exited abnormally", ErrGenerationFailed)
	}

	p.log.Info("render pipeline finished",
		zap.String("output", req.OutputPath),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// tail keeps diagnostics bounded; ffmpeg stderr can run to megabytes.
func tail(s string) string {
	const max = 4096
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
