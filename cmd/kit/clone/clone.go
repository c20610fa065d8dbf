// Package clonecmder provides the clone command.
package clonecmder

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kcterala/kit/pkg/cmdenv"
	"github.com/kcterala/kit/pkg/git"
	"github.com/kcterala/kit/pkg/github"
	"github.com/kcterala/kit/pkg/ui"
)

const cloneLongDesc string = `Clone a GitHub repository over SSH.

When the repository is a fork, its parent is added as the "upstream"
remote so you can pull changes from the original project.

Accepted forms:
  https://github.com/owner/repo(.git)
  git@github.com:owner/repo(.git)
  owner/repo

Examples:
  kit clone https://github.com/kcterala/kit
  kit clone git@github.com:kcterala/kit.git
  kit clone kcterala/kit ~/src/kit`

const cloneShortDesc string = "Clone a repository and wire up its upstream"

// NewRunner builds the git runner. Replaced in tests.
var NewRunner = func(log *zap.Logger) *git.Runner {
	return git.NewRunner(log)
}

func NewCloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clone <repo-url> [directory]",
		Short: cloneShortDesc,
		Long:  cloneLongDesc,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := github.ParseRepoURL(args[0])
			if err != nil {
				return err
			}

			env, err := cmdenv.FromCommand(cmd)
			if err != nil {
				return err
			}

			client, err := env.AuthedGitHub(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			repo, err := client.Repository(cmd.Context(), owner, name)
			if err != nil {
				return err
			}

			dir := name
			if len(args) == 2 {
				dir = args[1]
			}
			return CloneRepository(cmd.Context(), NewRunner(env.Logger), repo, dir)
		},
	}
}

// CloneRepository clones repo into dir and, for forks, adds the parent as
// the upstream remote.
func CloneRepository(ctx context.Context, runner *git.Runner, repo *github.RepoDetails, dir string) error {
	ui.Info("Cloning %s into %s", repo.SSHURL, dir)
	if err := runner.Clone(ctx, repo.SSHURL, dir); err != nil {
		return err
	}

	if !repo.Fork || repo.ParentSSHURL == "" {
		ui.Success("Cloned %s", dir)
		return nil
	}

	ui.Info("Repository is a fork, adding parent as upstream")
	err := git.AddUpstream(dir, repo.ParentSSHURL)
	switch {
	case errors.Is(err, git.ErrRemoteExists):
		ui.Warn("Upstream remote already exists in %s", dir)
	case err != nil:
		return err
	default:
		ui.Success("Upstream remote added: %s", repo.ParentSSHURL)
	}

	return nil
}
