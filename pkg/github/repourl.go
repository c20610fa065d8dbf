package github

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidRepoURL is returned for anything that does not name a GitHub
// repository.
var ErrInvalidRepoURL = errors.New("invalid GitHub repository URL")

// ParseRepoURL extracts owner and name from
//
//	https://github.com/owner/repo(.git)
//	git@github.com:owner/repo(.git)
//	owner/repo
func ParseRepoURL(raw string) (owner, name string, err error) {
	raw = strings.TrimSpace(raw)

	var path string
	switch {
	case strings.HasPrefix(raw, "git@github.com:"):
		path = strings.TrimPrefix(raw, "git@github.com:")
	case strings.HasPrefix(raw, "https://"), strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "ssh://"):
		u, perr := url.Parse(raw)
		if perr != nil || u.Hostname() != "github.com" {
			return "", "", invalid(raw)
		}
		path = strings.TrimPrefix(u.Path, "/")
	case !strings.Contains(raw, ":"):
		path = raw
	default:
		return "", "", invalid(raw)
	}

	path = strings.TrimSuffix(strings.TrimSuffix(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", invalid(raw)
	}

	return parts[0], parts[1], nil
}

func invalid(raw string) error {
	return errors.WithHint(
		errors.Wrapf(ErrInvalidRepoURL, "%q", raw),
		"use https://github.com/owner/repo, git@github.com:owner/repo.git or owner/repo",
	)
}
