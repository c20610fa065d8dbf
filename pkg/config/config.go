// Package config loads kit's optional settings.toml and environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	oauthgithub "golang.org/x/oauth2/github"
)

const (
	settingsFile = "settings.toml"

	DefaultGitHubScope     = "read:user public_repo"
	DefaultGitHubAPIURL    = "https://api.github.com/"
	DefaultOpenAIModel     = "gpt-4.1-mini"
	DefaultOpenAIBaseURL   = "https://api.openai.com/v1"
	DefaultSuggestionCount = 3
)

// ErrMissingClientID is returned by RequireClientID when no OAuth client ID is configured.
var ErrMissingClientID = errors.New("github oauth client id is not configured")

// Settings is the content of settings.toml after defaults and environment
// overrides have been applied.
type Settings struct {
	GitHub GitHub `toml:"github"`
	OpenAI OpenAI `toml:"openai"`
}

// GitHub configures the device flow and the REST client.
type GitHub struct {
	ClientID      string `toml:"client_id"`
	Scope         string `toml:"scope"`
	DeviceCodeURL string `toml:"device_code_url"`
	TokenURL      string `toml:"token_url"`
	APIURL        string `toml:"api_url"`
}

// OpenAI configures commit message suggestions.
type OpenAI struct {
	Model       string `toml:"model"`
	BaseURL     string `toml:"base_url"`
	Suggestions int    `toml:"suggestions"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		GitHub: GitHub{
			Scope:         DefaultGitHubScope,
			DeviceCodeURL: oauthgithub.Endpoint.DeviceAuthURL,
			TokenURL:      oauthgithub.Endpoint.TokenURL,
			APIURL:        DefaultGitHubAPIURL,
		},
		OpenAI: OpenAI{
			Model:       DefaultOpenAIModel,
			BaseURL:     DefaultOpenAIBaseURL,
			Suggestions: DefaultSuggestionCount,
		},
	}
}

// Load reads dir/settings.toml when present, then a .env file in the working
// directory, then environment variables. Later sources win.
func Load(dir string) (*Settings, error) {
	s := Defaults()

	if dir != "" {
		path := filepath.Join(dir, settingsFile)
		if _, err := toml.DecodeFile(path, &s); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "loading .env")
	}

	applyEnv(&s)
	fillDefaults(&s)

	return &s, nil
}

func applyEnv(s *Settings) {
	if v := firstEnv("KIT_GITHUB_CLIENT_ID", "GITHUB_CLIENT_ID"); v != "" {
		s.GitHub.ClientID = v
	}
	if v := firstEnv("KIT_GITHUB_SCOPE"); v != "" {
		s.GitHub.Scope = v
	}
	if v := firstEnv("KIT_GITHUB_DEVICE_CODE_URL"); v != "" {
		s.GitHub.DeviceCodeURL = v
	}
	if v := firstEnv("KIT_GITHUB_TOKEN_URL"); v != "" {
		s.GitHub.TokenURL = v
	}
	if v := firstEnv("KIT_GITHUB_API_URL"); v != "" {
		s.GitHub.APIURL = v
	}
	if v := firstEnv("KIT_OPENAI_MODEL"); v != "" {
		s.OpenAI.Model = v
	}
	if v := firstEnv("KIT_OPENAI_BASE_URL"); v != "" {
		s.OpenAI.BaseURL = v
	}
	if v := firstEnv("KIT_SUGGESTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			s.OpenAI.Suggestions = n
		}
	}
}

// fillDefaults restores defaults for keys a settings file set to empty.
func fillDefaults(s *Settings) {
	d := Defaults()
	if s.GitHub.Scope == "" {
		s.GitHub.Scope = d.GitHub.Scope
	}
	if s.GitHub.DeviceCodeURL == "" {
		s.GitHub.DeviceCodeURL = d.GitHub.DeviceCodeURL
	}
	if s.GitHub.TokenURL == "" {
		s.GitHub.TokenURL = d.GitHub.TokenURL
	}
	if s.GitHub.APIURL == "" {
		s.GitHub.APIURL = d.GitHub.APIURL
	}
	if !strings.HasSuffix(s.GitHub.APIURL, "/") {
		s.GitHub.APIURL += "/"
	}
	if s.OpenAI.Model == "" {
		s.OpenAI.Model = d.OpenAI.Model
	}
	if s.OpenAI.BaseURL == "" {
		s.OpenAI.BaseURL = d.OpenAI.BaseURL
	}
	s.OpenAI.BaseURL = strings.TrimRight(s.OpenAI.BaseURL, "/")
	if s.OpenAI.Suggestions <= 0 {
		s.OpenAI.Suggestions = d.OpenAI.Suggestions
	}
}

// RequireClientID returns the configured client ID or ErrMissingClientID.
func (s *Settings) RequireClientID() (string, error) {
	if s.GitHub.ClientID == "" {
		return "", errors.WithHint(ErrMissingClientID,
			"set GITHUB_CLIENT_ID in the environment or a .env file, or client_id under [github] in settings.toml")
	}
	return s.GitHub.ClientID, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
