// Package gitfetch validates repository addresses and clones them via
// the external git binary.
//
// git is an opaque collaborator here: the contract is arguments in,
// exit status out. Non-zero exit means the fetch failed; stderr goes to
// the log, never to callers.
package gitfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"

	"go.uber.org/zap"
)

var (
	// ErrInvalidURL means the repository address does not parse as a URL.
	ErrInvalidURL = errors.New("invalid repository URL")

	// ErrUnsupportedRepository means the address is well-formed but not
	// hosted on a supported service.
	ErrUnsupportedRepository = errors.New("only GitHub repositories are supported")

	// ErrCloneFailed means git could not fetch the repository.
	ErrCloneFailed = errors.New("failed to clone repository")
)

// supportedHost is the only hosting service accepted at submission.
const supportedHost = "github.com"

// ValidateURL checks that repoURL is a well-formed address on the
// supported hosting service. Called before any process is spawned or
// credential decrypted, so bad input costs nothing.
func ValidateURL(repoURL string) (*url.URL, error) {
	u, err := url.Parse(repoURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, ErrInvalidURL
	}
	if u.Hostname() != supportedHost {
		return nil, ErrUnsupportedRepository
	}
	return u, nil
}

// CloneURL returns the address to hand to git, embedding the access
// token as userinfo when one is present.
func CloneURL(repoURL, accessToken string) (string, error) {
	u, err := ValidateURL(repoURL)
	if err != nil {
		return "", err
	}
	if accessToken != "" {
		u.User = url.UserPassword("oauth2", accessToken)
	}
	return u.String(), nil
}

// runner abstracts process execution so tests never touch the network.
type runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// Cloner fetches repositories into local working directories.
type Cloner struct {
	gitPath string
	runner  runner
	log     *zap.Logger
}

// NewCloner builds a Cloner using the git binary on PATH.
func NewCloner(log *zap.Logger) *Cloner {
	return &Cloner{gitPath: "git", runner: execRunner{}, log: log}
}

// NewClonerForTests builds a Cloner with an injected runner.
func NewClonerForTests(gitPath string, r runner, log *zap.Logger) *Cloner {
	return &Cloner{gitPath: gitPath, runner: r, log: log}
}

// Clone fetches repoURL into dir. The access token, when non-empty, is
// embedded in the clone address and never logged.
func (c *Cloner) Clone(ctx context.Context, repoURL, accessToken, dir string) error {
	cloneURL, err := CloneURL(repoURL, accessToken)
	if err != nil {
		return err
	}

	stderr, err := c.runner.Run(ctx, "", c.gitPath, "clone", cloneURL, dir)
	if err != nil {
		c.log.Error("git clone failed",
			zap.String("repo_url", repoURL),
			zap.String("stderr", stderr),
			zap.Error(err))
		return fmt.Errorf("%w: git exited abnormally", ErrCloneFailed)
	}

	c.log.Info("cloned repository", zap.String("repo_url", repoURL), zap.String("dir", dir))
	return nil
}
