// Package github wraps the GitHub REST API calls kit needs.
package github

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	gh "github.com/google/go-github/v67/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/kcterala/kit/pkg/logger"
)

const userAgent = "kit-cli"

// RepoDetails is the subset of a repository kit acts on.
type RepoDetails struct {
	Owner        string
	Name         string
	Fork         bool
	SSHURL       string
	ParentSSHURL string
}

// Client talks to the GitHub API with a bearer token.
type Client struct {
	api    *gh.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// WithBaseURL points the client at another API root, such as a test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient sets the transport the oauth2 client wraps.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewClient returns a Client authenticated with token.
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	api := gh.NewClient(oauth2.NewClient(ctx, ts))
	api.UserAgent = userAgent

	if o.baseURL != "" {
		base := o.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing github api url %q", o.baseURL)
		}
		api.BaseURL = u
	}

	return &Client{api: api, logger: logger.OrNop(o.logger)}, nil
}

// Repository fetches owner/name.
func (c *Client) Repository(ctx context.Context, owner, name string) (*RepoDetails, error) {
	c.logger.Debug("fetching repository", zap.String("owner", owner), zap.String("repo", name))

	repo, _, err := c.api.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching repo details for %s/%s", owner, name)
	}

	return details(repo), nil
}

// CurrentUser returns the login of the token's owner.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	user, _, err := c.api.Users.Get(ctx, "")
	if err != nil {
		return "", errors.Wrap(err, "fetching authenticated user")
	}
	return user.GetLogin(), nil
}

// Fork forks owner/name into the authenticated account. GitHub creates forks
// asynchronously and answers 202; that is treated as success.
func (c *Client) Fork(ctx context.Context, owner, name string) (*RepoDetails, error) {
	c.logger.Debug("forking repository", zap.String("owner", owner), zap.String("repo", name))

	repo, _, err := c.api.Repositories.CreateFork(ctx, owner, name, &gh.RepositoryCreateForkOptions{})
	if err != nil {
		var accepted *gh.AcceptedError
		if !errors.As(err, &accepted) {
			return nil, errors.Wrapf(err, "forking %s/%s", owner, name)
		}
	}
	if repo == nil || repo.GetSSHURL() == "" {
		return nil, errors.Newf("fork of %s/%s returned no repository", owner, name)
	}

	d := details(repo)
	if d.ParentSSHURL == "" {
		// The fork response may omit parent while GitHub is still copying.
		d.ParentSSHURL = "git@github.com:" + owner + "/" + name + ".git"
	}
	return d, nil
}

func details(repo *gh.Repository) *RepoDetails {
	return &RepoDetails{
		Owner:        repo.GetOwner().GetLogin(),
		Name:         repo.GetName(),
		Fork:         repo.GetFork(),
		SSHURL:       repo.GetSSHURL(),
		ParentSSHURL: repo.GetParent().GetSSHURL(),
	}
}
