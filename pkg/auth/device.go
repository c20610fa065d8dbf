package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/cockroachdb/errors"
	"github.com/pkg/browser"
	"go.uber.org/zap"

	"github.com/kcterala/kit/pkg/credentials"
	"github.com/kcterala/kit/pkg/logger"
)

const (
	// GrantTypeDeviceCode is the grant_type sent on every poll (RFC 8628 §3.4).
	GrantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

	// NoBrowserEnv disables opening the verification URL when set to "true".
	NoBrowserEnv = "KIT_NO_BROWSER"

	defaultHTTPTimeout = 10 * time.Second
	defaultInterval    = 5 * time.Second
	slowDownIncrement  = 5 * time.Second
)

// Config names the OAuth application and provider endpoints.
type Config struct {
	ClientID      string
	Scope         string
	DeviceCodeURL string
	TokenURL      string
}

// Session is the provider's answer to the device code request. It lives
// only for one login attempt and is never persisted.
type Session struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	Interval        time.Duration
	ExpiresIn       time.Duration
}

type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Flow runs the OAuth 2.0 Device Authorization Grant and stores the
// resulting token. Zero-valued hooks fall back to real implementations.
type Flow struct {
	Config     Config
	Store      credentials.Store
	HTTPClient *http.Client
	Out        io.Writer
	Logger     *zap.Logger

	// OpenBrowser opens the verification URL. Failures are logged only.
	OpenBrowser func(url string) error

	// CopyToClipboard copies the user code. Failures are logged only.
	CopyToClipboard func(text string) error

	// Sleep waits between polls and returns early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error

	// Now is the clock used for the device code expiry deadline.
	Now func() time.Time

	state State
}

// State reports where the last Login call got to.
func (f *Flow) State() State {
	return f.state
}

func (f *Flow) setDefaults() {
	if f.HTTPClient == nil {
		f.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if f.Out == nil {
		f.Out = os.Stdout
	}
	f.Logger = logger.OrNop(f.Logger)
	if f.OpenBrowser == nil {
		f.OpenBrowser = openBrowser
	}
	if f.CopyToClipboard == nil {
		f.CopyToClipboard = clipboard.WriteAll
	}
	if f.Sleep == nil {
		f.Sleep = sleepContext
	}
	if f.Now == nil {
		f.Now = time.Now
	}
}

// Login runs the device flow to a terminal state. On success the token is
// saved to the Store before it is returned; on any failure nothing is saved.
func (f *Flow) Login(ctx context.Context) (string, error) {
	f.setDefaults()

	if f.Store == nil {
		return "", errors.New("credential store is required")
	}
	if f.Config.ClientID == "" {
		return "", errors.New("client id is required")
	}

	f.state = StateRequesting
	session, err := f.requestDeviceCode(ctx)
	if err != nil {
		return "", err
	}

	f.state = StateAwaitingUser
	f.presentCode(session)

	f.state = StatePolling
	token, err := f.poll(ctx, session)
	if err != nil {
		return "", err
	}

	if err := f.Store.Save(credentials.Update{Token: credentials.String(token)}); err != nil {
		return "", errors.Wrap(err, "saving github token")
	}
	f.state = StateAuthorized

	fmt.Fprintln(f.Out, "GitHub authentication successful!")

	return token, nil
}

func (f *Flow) requestDeviceCode(ctx context.Context) (*Session, error) {
	form := url.Values{}
	form.Set("client_id", f.Config.ClientID)
	form.Set("scope", f.Config.Scope)

	f.Logger.Debug("requesting device code",
		zap.String("url", f.Config.DeviceCodeURL),
		zap.String("scope", f.Config.Scope),
	)

	body, status, err := f.postForm(ctx, f.Config.DeviceCodeURL, form)
	if err != nil {
		return nil, transportError(err, "requesting device code")
	}
	if status < 200 || status >= 300 {
		return nil, transportError(
			errors.Newf("device code request failed (%d): %s", status, strings.TrimSpace(string(body))),
			"requesting device code",
		)
	}

	var payload deviceCodeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, transportError(err, "parsing device code response")
	}
	if payload.DeviceCode == "" || payload.UserCode == "" {
		return nil, transportError(errors.New("device code response is missing fields"), "parsing device code response")
	}

	interval := time.Duration(payload.Interval) * time.Second
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Session{
		DeviceCode:      payload.DeviceCode,
		UserCode:        payload.UserCode,
		VerificationURI: payload.VerificationURI,
		Interval:        interval,
		ExpiresIn:       time.Duration(payload.ExpiresIn) * time.Second,
	}, nil
}

func (f *Flow) presentCode(s *Session) {
	fmt.Fprintln(f.Out, "Opening browser for GitHub login...")
	fmt.Fprintf(f.Out, "Enter this code: %s\n", s.UserCode)
	fmt.Fprintf(f.Out, "Verification URL: %s\n", s.VerificationURI)

	if err := f.CopyToClipboard(s.UserCode); err != nil {
		f.Logger.Warn("could not copy code to clipboard", zap.Error(err))
	} else {
		fmt.Fprintln(f.Out, "(code copied to clipboard)")
	}

	if strings.EqualFold(os.Getenv(NoBrowserEnv), "true") || s.VerificationURI == "" {
		return
	}
	if err := f.OpenBrowser(s.VerificationURI); err != nil {
		f.Logger.Warn("could not open browser, visit the URL manually", zap.Error(err))
	}
}

func (f *Flow) poll(ctx context.Context, s *Session) (string, error) {
	interval := s.Interval

	var deadline time.Time
	if s.ExpiresIn > 0 {
		deadline = f.Now().Add(s.ExpiresIn)
	}

	for attempt := 1; ; attempt++ {
		if err := f.Sleep(ctx, interval); err != nil {
			return "", errors.Wrap(err, "waiting for authorization")
		}
		if !deadline.IsZero() && f.Now().After(deadline) {
			f.state = StateExpired
			return "", errors.Wrap(ErrExpired, "device code expired before authorization")
		}

		outcome, err := f.pollOnce(ctx, s.DeviceCode)
		if err != nil {
			return "", err
		}

		f.Logger.Debug("device token poll",
			zap.Int("attempt", attempt),
			zap.Stringer("outcome", outcome.Kind),
			zap.Duration("interval", interval),
		)

		switch outcome.Kind {
		case OutcomeSuccess:
			return outcome.Token, nil
		case OutcomeContinue:
			continue
		case OutcomeSlowDown:
			interval += slowDownIncrement
		case OutcomeDenied:
			f.state = StateDenied
			return "", ErrDenied
		case OutcomeExpired:
			f.state = StateExpired
			return "", ErrExpired
		default:
			f.state = StateProviderError
			return "", errors.Mark(errors.Newf("oauth error: %s", outcome.Error), ErrProvider)
		}
	}
}

func (f *Flow) pollOnce(ctx context.Context, deviceCode string) (PollOutcome, error) {
	form := url.Values{}
	form.Set("client_id", f.Config.ClientID)
	form.Set("device_code", deviceCode)
	form.Set("grant_type", GrantTypeDeviceCode)

	body, status, err := f.postForm(ctx, f.Config.TokenURL, form)
	if err != nil {
		return PollOutcome{}, transportError(err, "polling for token")
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		if status < 200 || status >= 300 {
			return PollOutcome{}, transportError(errors.Newf("token request failed (%d)", status), "polling for token")
		}
		return PollOutcome{}, transportError(err, "parsing token response")
	}

	// Error codes arrive with a 400 status; only a non-2xx without one is a
	// transport failure.
	if (status < 200 || status >= 300) && payload.Error == "" {
		return PollOutcome{}, transportError(errors.Newf("token request failed (%d)", status), "polling for token")
	}

	return Interpret(payload.AccessToken, payload.Error, payload.ErrorDescription), nil
}

func (f *Flow) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}

func transportError(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrTransport)
}

func openBrowser(u string) error {
	return browser.OpenURL(u)
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
