// Package git runs the repository operations behind kit clone, fork and
// commit. Network and commit operations shell out to the git binary so the
// user's SSH agent, hooks and signing config apply; local inspection uses
// go-git.
package git

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/cockroachdb/errors"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"go.uber.org/zap"

	"github.com/kcterala/kit/pkg/logger"
)

// UpstreamRemote is the remote name used for a fork's parent.
const UpstreamRemote = "upstream"

var (
	// ErrRemoteExists is returned when the repository already has an upstream remote.
	ErrRemoteExists = errors.New("upstream remote already exists")

	// ErrNotRepository is returned when dir is not inside a git repository.
	ErrNotRepository = errors.New("not a git repository")
)

// Runner executes git commands.
type Runner struct {
	// Binary is the git executable. Defaults to "git".
	Binary string

	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
}

// NewRunner returns a Runner wired to the process stdio.
func NewRunner(log *zap.Logger) *Runner {
	return &Runner{
		Binary: "git",
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger.OrNop(log),
	}
}

// Clone clones url into dir.
func (r *Runner) Clone(ctx context.Context, url, dir string) error {
	if err := r.run(ctx, "", "clone", url, dir); err != nil {
		return errors.Wrapf(err, "cloning %s", url)
	}
	return nil
}

// Commit records the staged changes in dir with message.
func (r *Runner) Commit(ctx context.Context, dir, message string) error {
	if err := r.run(ctx, dir, "commit", "-m", message); err != nil {
		return errors.Wrap(err, "git commit")
	}
	return nil
}

func (r *Runner) run(ctx context.Context, dir string, args ...string) error {
	bin := r.Binary
	if bin == "" {
		bin = "git"
	}
	log := logger.OrNop(r.Logger)
	log.Debug("running git", zap.Strings("args", args), zap.String("dir", dir))

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return cmd.Run()
}

// AddUpstream adds url as the upstream remote of the repository at dir.
func AddUpstream(dir, url string) error {
	repo, err := open(dir)
	if err != nil {
		return err
	}

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: UpstreamRemote,
		URLs: []string{url},
	})
	if errors.Is(err, gogit.ErrRemoteExists) {
		return ErrRemoteExists
	}
	if err != nil {
		return errors.Wrap(err, "adding upstream remote")
	}
	return nil
}

// Upstream returns the upstream remote URL, or "" when there is none.
func Upstream(dir string) (string, error) {
	repo, err := open(dir)
	if err != nil {
		return "", err
	}

	remote, err := repo.Remote(UpstreamRemote)
	if errors.Is(err, gogit.ErrRemoteNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "reading upstream remote")
	}
	if urls := remote.Config().URLs; len(urls) > 0 {
		return urls[0], nil
	}
	return "", nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func HasStagedChanges(dir string) (bool, error) {
	repo, err := open(dir)
	if err != nil {
		return false, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return false, errors.Wrap(err, "opening worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return false, errors.Wrap(err, "reading worktree status")
	}

	for _, s := range status {
		if s.Staging != gogit.Unmodified && s.Staging != gogit.Untracked {
			return true, nil
		}
	}
	return false, nil
}

func open(dir string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, errors.Wrapf(ErrNotRepository, "%s", dir)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening repository %s", dir)
	}
	return repo, nil
}
