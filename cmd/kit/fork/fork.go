// Package forkcmder provides the fork command.
package forkcmder

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	clonecmder "github.com/kcterala/kit/cmd/kit/clone"
	"github.com/kcterala/kit/pkg/cmdenv"
	"github.com/kcterala/kit/pkg/github"
	"github.com/kcterala/kit/pkg/ui"
)

const forkLongDesc string = `Fork a GitHub repository into your account and clone the fork.

The original repository is added as the "upstream" remote of the clone.
Use --no-clone to only create the fork.

Examples:
  kit fork https://github.com/acme/widget
  kit fork acme/widget --no-clone`

const forkShortDesc string = "Fork a repository and clone the fork"

// GitHub copies a fork in the background. Before cloning, the fork is
// fetched until it is readable, at most forkReadyAttempts times.
var (
	forkReadyAttempts = 5
	forkReadyDelay    = 2 * time.Second
	sleep             = sleepContext
)

func NewForkCmd() *cobra.Command {
	var noClone bool

	cmd := &cobra.Command{
		Use:   "fork <repo-url> [directory]",
		Short: forkShortDesc,
		Long:  forkLongDesc,
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

			ui.Info("Forking %s/%s", owner, name)
			fork, err := client.Fork(cmd.Context(), owner, name)
			if err != nil {
				return err
			}
			ui.Success("Created fork %s/%s", fork.Owner, fork.Name)

			if noClone {
				return nil
			}

			if err := waitForFork(cmd.Context(), client, fork); err != nil {
				return err
			}

			dir := fork.Name
			if len(args) == 2 {
				dir = args[1]
			}
			return clonecmder.CloneRepository(cmd.Context(), clonecmder.NewRunner(env.Logger), fork, dir)
		},
	}

	cmd.Flags().BoolVar(&noClone, "no-clone", false, "Only create the fork")

	return cmd
}

func waitForFork(ctx context.Context, client *github.Client, fork *github.RepoDetails) error {
	var err error
	for attempt := 0; attempt < forkReadyAttempts; attempt++ {
		if attempt > 0 {
			if serr := sleep(ctx, forkReadyDelay); serr != nil {
				return serr
			}
		}
		if _, err = client.Repository(ctx, fork.Owner, fork.Name); err == nil {
			return nil
		}
	}
	return errors.WithHintf(
		errors.Wrapf(err, "fork %s/%s is not ready", fork.Owner, fork.Name),
		"GitHub may still be copying it; retry with `kit clone %s/%s`", fork.Owner, fork.Name,
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
