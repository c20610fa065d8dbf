// Package cmdenv assembles the settings, logger and stores shared by kit's
// subcommands from the root command's persistent flags.
package cmdenv

import (
	"context"
	"io"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kcterala/kit/pkg/auth"
	"github.com/kcterala/kit/pkg/config"
	"github.com/kcterala/kit/pkg/credentials"
	"github.com/kcterala/kit/pkg/github"
	"github.com/kcterala/kit/pkg/logger"
)

const (
	ConfigDirFlag = "config-dir"
	VerboseFlag   = "verbose"
)

// Env is everything a subcommand needs to talk to GitHub and OpenAI.
type Env struct {
	Verbose  bool
	Logger   *zap.Logger
	Settings *config.Settings
	Store    *credentials.FileStore

	// ConfigureFlow, when set, adjusts each device flow before it runs.
	ConfigureFlow func(*auth.Flow)
}

// FromCommand builds an Env from cmd's --config-dir and --verbose flags.
func FromCommand(cmd *cobra.Command) (*Env, error) {
	override, _ := cmd.Flags().GetString(ConfigDirFlag)
	verbose, _ := cmd.Flags().GetBool(VerboseFlag)

	log, err := logger.New(verbose)
	if err != nil {
		return nil, errors.Wrap(err, "creating logger")
	}

	store, err := credentials.NewFileStore(override)
	if err != nil {
		return nil, errors.Wrap(err, "opening credential store")
	}

	settings, err := config.Load(filepath.Dir(store.Path()))
	if err != nil {
		return nil, err
	}

	log.Debug("loaded settings",
		zap.String("config", store.Path()),
		zap.String("github_api", settings.GitHub.APIURL),
		zap.String("openai_model", settings.OpenAI.Model),
	)

	return &Env{
		Verbose:  verbose,
		Logger:   log,
		Settings: settings,
		Store:    store,
	}, nil
}

// Flow returns a device flow configured from the settings.
func (e *Env) Flow(out io.Writer) (*auth.Flow, error) {
	clientID, err := e.Settings.RequireClientID()
	if err != nil {
		return nil, err
	}

	flow := &auth.Flow{
		Config: auth.Config{
			ClientID:      clientID,
			Scope:         e.Settings.GitHub.Scope,
			DeviceCodeURL: e.Settings.GitHub.DeviceCodeURL,
			TokenURL:      e.Settings.GitHub.TokenURL,
		},
		Store:  e.Store,
		Out:    out,
		Logger: e.Logger,
	}
	if e.ConfigureFlow != nil {
		e.ConfigureFlow(flow)
	}
	return flow, nil
}

// Login runs the device flow and then records the account's login name.
// A failed username lookup is logged; the token is already stored.
func (e *Env) Login(ctx context.Context, out io.Writer) (string, error) {
	flow, err := e.Flow(out)
	if err != nil {
		return "", err
	}

	token, err := flow.Login(ctx)
	if err != nil {
		return "", err
	}

	client, err := e.GitHub(ctx, token)
	if err != nil {
		e.Logger.Warn("could not create GitHub client", zap.Error(err))
		return token, nil
	}
	username, err := client.CurrentUser(ctx)
	if err != nil {
		e.Logger.Warn("could not look up GitHub username", zap.Error(err))
		return token, nil
	}
	if err := e.Store.Save(credentials.Update{Username: credentials.String(username)}); err != nil {
		e.Logger.Warn("could not save GitHub username", zap.Error(err))
	}

	return token, nil
}

// Accessor returns a token accessor that logs in on demand.
func (e *Env) Accessor(out io.Writer) *auth.Accessor {
	return &auth.Accessor{
		Store: e.Store,
		Login: func(ctx context.Context) (string, error) {
			return e.Login(ctx, out)
		},
	}
}

// GitHub returns an API client for token.
func (e *Env) GitHub(ctx context.Context, token string) (*github.Client, error) {
	return github.NewClient(ctx, token,
		github.WithBaseURL(e.Settings.GitHub.APIURL),
		github.WithLogger(e.Logger),
	)
}

// AuthedGitHub resolves the cached token, logging in if needed, and returns
// a client for it.
func (e *Env) AuthedGitHub(ctx context.Context, out io.Writer) (*github.Client, error) {
	token, err := e.Accessor(out).Token(ctx)
	if err != nil {
		return nil, err
	}
	return e.GitHub(ctx, token)
}
