// Package authcmder provides the auth command for logging in to GitHub and
// storing the OpenAI key.
package authcmder

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/kcterala/kit/pkg/auth"
	"github.com/kcterala/kit/pkg/cmdenv"
	"github.com/kcterala/kit/pkg/credentials"
	"github.com/kcterala/kit/pkg/ui"
)

const authLongDesc string = `Manage the credentials kit stores.

kit logs in to GitHub with the OAuth device flow: it prints a one-time
code, opens github.com/login/device in your browser and waits for you to
approve. The resulting token is kept in config.json in the kit config
directory. Set KIT_NO_BROWSER=true to skip opening the browser.

Examples:
  kit auth login             Log in to GitHub
  kit auth status            Show the stored account
  kit auth token             Print the GitHub token
  kit auth logout            Remove the GitHub token
  kit auth openai            Prompt for an OpenAI API key
  echo $KEY | kit auth openai  Pipe the OpenAI key from stdin`

const authShortDesc string = "Log in to GitHub and manage stored credentials"

var errNotLoggedIn = errors.New("not logged in to GitHub")

// loginFn runs the device flow. Replaced in tests.
var loginFn = func(ctx context.Context, env *cmdenv.Env, out io.Writer) (string, error) {
	return env.Login(ctx, out)
}

// readAPIKeyFn reads the OpenAI key. Replaced in tests.
var readAPIKeyFn = func() (string, error) {
	return ui.ReadSecret("Enter your OpenAI API key: ")
}

func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
	}

	cmd.AddCommand(
		newLoginCmd(),
		newStatusCmd(),
		newTokenCmd(),
		newLogoutCmd(),
		newOpenAICmd(),
	)

	return cmd
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to GitHub with the device flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.FromCommand(cmd)
			if err != nil {
				return err
			}
			return runLogin(cmd.Context(), env, cmd.OutOrStdout())
		},
	}
}

func runLogin(ctx context.Context, env *cmdenv.Env, out io.Writer) error {
	if _, err := loginFn(ctx, env, out); err != nil {
		return err
	}

	rec, err := env.Store.Load()
	if err != nil {
		return err
	}
	if rec.Username != "" {
		fmt.Fprintf(out, "Logged in as %s\n", rec.Username)
	}
	return nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored GitHub account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.FromCommand(cmd)
			if err != nil {
				return err
			}
			return runStatus(env, cmd.OutOrStdout())
		},
	}
}

func runStatus(env *cmdenv.Env, out io.Writer) error {
	rec, err := env.Store.Load()
	if errors.Is(err, credentials.ErrNotFound) {
		rec = &credentials.Record{}
	} else if err != nil {
		return err
	}

	if rec.Token == "" {
		return errors.WithHint(errNotLoggedIn, "run `kit auth login`")
	}

	account := rec.Username
	if account == "" {
		account = "(unknown user)"
	}
	fmt.Fprintf(out, "Logged in to github.com as %s\n", account)
	fmt.Fprintf(out, "  Token:          %s\n", maskToken(rec.Token))
	if rec.OpenAIAPIKey != "" {
		fmt.Fprintf(out, "  OpenAI API key: %s\n", maskToken(rec.OpenAIAPIKey))
	} else {
		fmt.Fprintln(out, "  OpenAI API key: not set")
	}
	fmt.Fprintf(out, "  Config:         %s\n", env.Store.Path())

	return nil
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the GitHub token, logging in first if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.FromCommand(cmd)
			if err != nil {
				return err
			}

			accessor := &auth.Accessor{
				Store: env.Store,
				Login: func(ctx context.Context) (string, error) {
					return loginFn(ctx, env, cmd.ErrOrStderr())
				},
			}

			token, err := accessor.Token(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored GitHub token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.FromCommand(cmd)
			if err != nil {
				return err
			}

			rec, err := env.Store.Load()
			if errors.Is(err, credentials.ErrNotFound) || (err == nil && rec.Token == "") {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			if err != nil {
				return err
			}

			if err := env.Store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out of github.com.")
			return nil
		},
	}
}

func newOpenAICmd() *cobra.Command {
	var removeFlag bool

	cmd := &cobra.Command{
		Use:   "openai",
		Short: "Store the OpenAI API key used by kit commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.FromCommand(cmd)
			if err != nil {
				return err
			}

			if removeFlag {
				if err := env.Store.Save(credentials.Update{OpenAIAPIKey: credentials.String("")}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Removed OpenAI API key.")
				return nil
			}

			key, err := readAPIKeyFn()
			if err != nil {
				return err
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("API key cannot be empty")
			}

			if err := env.Store.Save(credentials.Update{OpenAIAPIKey: credentials.String(key)}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stored OpenAI API key.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&removeFlag, "remove", false, "Remove the stored OpenAI API key")

	return cmd
}

// maskToken keeps a short prefix so the token type stays recognisable.
func maskToken(token string) string {
	const keep = 4
	if len(token) <= keep {
		return strings.Repeat("*", len(token))
	}
	return token[:keep] + strings.Repeat("*", 8)
}
