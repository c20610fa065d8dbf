// Package commitcmder provides the commit command.
package commitcmder

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kcterala/kit/pkg/cmdenv"
	"github.com/kcterala/kit/pkg/git"
	"github.com/kcterala/kit/pkg/llm/openai"
	"github.com/kcterala/kit/pkg/suggest"
	"github.com/kcterala/kit/pkg/ui"
)

const commitLongDesc string = `Rewrite a rough commit message as a Conventional Commit and commit.

kit asks OpenAI for several rewrites in parallel and lets you pick one.
Choose "↻ Regenerate" (or press r) for a fresh set. The chosen message is
committed with git commit -m, so hooks and signing still apply.

The OpenAI key is read from OPENAI_API_KEY, then the kit config. If neither
is set you are prompted once and the key is saved.

Examples:
  kit commit -m "fixed the login thing"
  kit commit -m "add retries" --dry-run`

const commitShortDesc string = "Commit with an AI-polished Conventional Commit message"

var errNothingStaged = errors.New("no staged changes to commit")

// selectFn shows the suggestions. Replaced in tests.
var selectFn = ui.Select

// readAPIKeyFn prompts for the OpenAI key. Replaced in tests.
var readAPIKeyFn = func() (string, error) {
	return ui.ReadSecret("Enter your OpenAI API key: ")
}

// newRunner builds the git runner. Replaced in tests.
var newRunner = func(log *zap.Logger) *git.Runner {
	return git.NewRunner(log)
}

type commitOptions struct {
	message string
	dir     string
	count   int
	dryRun  bool
}

func NewCommitCmd() *cobra.Command {
	opts := &commitOptions{}

	cmd := &cobra.Command{
		Use:   "commit -m <message>",
		Short: commitShortDesc,
		Long:  commitLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.FromCommand(cmd)
			if err != nil {
				return err
			}
			if opts.count <= 0 {
				opts.count = env.Settings.OpenAI.Suggestions
			}
			return runCommit(cmd, env, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "Rough commit message to polish")
	cmd.Flags().StringVarP(&opts.dir, "dir", "C", ".", "Repository to commit in")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, "Suggestions per round (default from settings)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the chosen message instead of committing")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func runCommit(cmd *cobra.Command, env *cmdenv.Env, opts *commitOptions) error {
	ctx := cmd.Context()

	if !opts.dryRun {
		staged, err := git.HasStagedChanges(opts.dir)
		if err != nil {
			return err
		}
		if !staged {
			return errors.WithHint(errNothingStaged, "stage changes with `git add` first")
		}
	}

	key, err := suggest.APIKey(env.Store, readAPIKeyFn)
	if err != nil {
		return err
	}

	gen := &suggest.Generator{
		Completer: openai.NewClient(openai.Config{
			APIKey:  key,
			BaseURL: env.Settings.OpenAI.BaseURL,
			Model:   env.Settings.OpenAI.Model,
			Logger:  env.Logger,
		}),
		Count:  opts.count,
		Logger: env.Logger,
	}

	message, err := choose(ctx, gen, opts.message)
	if err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), message)
		return nil
	}

	if err := newRunner(env.Logger).Commit(ctx, opts.dir, message); err != nil {
		return err
	}
	ui.Success("Committed: %s", message)
	return nil
}

// choose loops until the user picks a suggestion or cancels.
func choose(ctx context.Context, gen *suggest.Generator, message string) (string, error) {
	for round := 1; ; round++ {
		ui.Info("Generating commit message suggestions...")
		suggestions, err := gen.Generate(ctx, message)
		if err != nil {
			return "", err
		}

		sel, err := selectFn(ctx, "Select a commit message:", suggestions)
		if err != nil {
			return "", err
		}
		if !sel.Regenerate {
			return sel.Value, nil
		}
		gen.Logger.Debug("regenerating suggestions", zap.Int("round", round))
	}
}
