// Package auth implements GitHub's OAuth device flow and the cached token
// lookup built on top of it.
package auth

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/kcterala/kit/pkg/credentials"
)

// Accessor hands out the cached GitHub token, logging in when none is stored.
type Accessor struct {
	Store credentials.Store

	// Login runs an interactive login and stores the token. Usually (*Flow).Login.
	Login func(ctx context.Context) (string, error)
}

// Token returns the stored token without checking it against GitHub. A
// missing file or an empty token triggers Login; a corrupt file does not.
func (a *Accessor) Token(ctx context.Context) (string, error) {
	rec, err := a.Store.Load()
	switch {
	case err == nil && rec.Token != "":
		return rec.Token, nil
	case err == nil, errors.Is(err, credentials.ErrNotFound):
	default:
		return "", err
	}

	if a.Login == nil {
		return "", errors.WithHint(errors.New("not logged in to GitHub"), "run `kit auth login`")
	}
	if _, err := a.Login(ctx); err != nil {
		return "", err
	}

	rec, err = a.Store.Load()
	if err != nil {
		return "", errors.Wrap(err, "reloading credentials after login")
	}
	if rec.Token == "" {
		return "", errors.New("login finished without storing a token")
	}

	return rec.Token, nil
}
