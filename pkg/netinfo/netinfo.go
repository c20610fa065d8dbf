// Package netinfo looks up the caller's public IP address.
package netinfo

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultTraceURL is Cloudflare's plain-text trace endpoint.
const DefaultTraceURL = "https://1.1.1.1/cdn-cgi/trace"

// ErrNoIP is returned when the trace response has no ip line.
var ErrNoIP = errors.New("trace response did not include an ip")

// Trace is the parsed trace response.
type Trace struct {
	IP     string
	Loc    string
	Colo   string
	Fields map[string]string
}

// Client fetches traces.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

// NewClient returns a Client for the Cloudflare endpoint.
func NewClient() *Client {
	return &Client{
		URL:        DefaultTraceURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup fetches and parses the trace.
func (c *Client) Lookup(ctx context.Context) (*Trace, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building trace request")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching public ip")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading trace response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("trace request failed (%d)", resp.StatusCode)
	}

	return Parse(body)
}

// Parse reads key=value lines. Lines without "=" are ignored.
func Parse(body []byte) (*Trace, error) {
	fields := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key == "" {
			continue
		}
		fields[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "parsing trace response")
	}

	if fields["ip"] == "" {
		return nil, ErrNoIP
	}

	return &Trace{
		IP:     fields["ip"],
		Loc:    fields["loc"],
		Colo:   fields["colo"],
		Fields: fields,
	}, nil
}
