// Package openai is a minimal client for the OpenAI Responses API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/kcterala/kit/pkg/logger"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4.1-mini"
	DefaultTemperature = 0.8
	DefaultMaxTokens   = 40

	defaultTimeout = 30 * time.Second
)

// ErrEmptyResponse is returned when the API answers without any text.
var ErrEmptyResponse = errors.New("openai response contained no text")

// Config holds client settings. Zero values fall back to the defaults above.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	MaxTokens   *int
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Client sends single-turn prompts to the Responses API.
type Client struct {
	config Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient returns a Client with defaults applied.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Temperature == nil {
		t := DefaultTemperature
		config.Temperature = &t
	}
	if config.MaxTokens == nil {
		n := DefaultMaxTokens
		config.MaxTokens = &n
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		config: config,
		http:   httpClient,
		logger: logger.OrNop(config.Logger),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// Complete sends system and user as one request and returns the trimmed
// response text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.config.APIKey == "" {
		return "", errors.New("openai api key is required")
	}

	parallel := false
	body, err := json.Marshal(responsesRequest{
		Model: c.config.Model,
		Input: []inputMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:       c.config.Temperature,
		MaxOutputTokens:   c.config.MaxTokens,
		ParallelToolCalls: &parallel,
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding openai request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "building openai request")
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "calling openai")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "reading openai response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp.StatusCode, raw)
	}

	var parsed responsesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errors.Wrap(err, "parsing openai response")
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", errors.Newf("openai response failed: %s", parsed.Error.Message)
	}

	text := outputText(parsed)
	if text == "" {
		return "", ErrEmptyResponse
	}

	fields := []zap.Field{
		zap.String("model", parsed.Model),
		zap.Duration("took", time.Since(start)),
	}
	if parsed.Usage != nil {
		fields = append(fields, zap.Int("output_tokens", parsed.Usage.OutputTokens))
	}
	c.logger.Debug("openai response", fields...)

	return text, nil
}

// outputText prefers the output_text convenience field and otherwise takes
// the first text part of the first message item.
func outputText(resp responsesResponse) string {
	if txt := strings.TrimSpace(resp.OutputText); txt != "" {
		return txt
	}

	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			switch part.Type {
			case "output_text", "text":
				if txt := strings.TrimSpace(part.Text); txt != "" {
					return txt
				}
			}
		}
	}

	return ""
}

func statusError(status int, raw []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		err := errors.Newf("openai request failed (%d): %s", status, env.Error.Message)
		if status == http.StatusUnauthorized {
			return errors.WithHint(err, "check OPENAI_API_KEY or the openai_api_key stored in the kit config")
		}
		return err
	}
	return errors.Newf("openai request failed (%d): %s", status, strings.TrimSpace(string(raw)))
}
