// Package suggest turns a rough commit message into Conventional Commit
// candidates by asking a language model several times in parallel.
package suggest

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kcterala/kit/pkg/credentials"
	"github.com/kcterala/kit/pkg/logger"
)

// DefaultCount is the number of parallel requests per round.
const DefaultCount = 3

// SystemPrompt instructs the model how to rewrite the message.
const SystemPrompt = "You rewrite git commit messages to be professional and follow Conventional Commits. " +
	"Its ok if you skip scope but try to figure out. Output only the commit message. No explanations."

// APIKeyEnv overrides the stored OpenAI key.
const APIKeyEnv = "OPENAI_API_KEY"

var (
	// ErrNoSuggestions is returned when every request in a round failed.
	ErrNoSuggestions = errors.New("failed to generate any commit message suggestions")

	// ErrEmptyMessage is returned for a blank input message.
	ErrEmptyMessage = errors.New("commit message cannot be empty")

	// ErrEmptyAPIKey is returned when the prompt yields a blank key.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
)

// Completer sends one system/user prompt pair and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Generator produces commit message suggestions.
type Generator struct {
	Completer Completer
	Count     int
	Logger    *zap.Logger
}

// Generate runs Count requests concurrently and returns the distinct,
// non-empty replies in request order. Failed requests are logged and
// skipped; if all of them fail the result is ErrNoSuggestions.
func (g *Generator) Generate(ctx context.Context, message string) ([]string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	n := g.Count
	if n <= 0 {
		n = DefaultCount
	}
	log := logger.OrNop(g.Logger)

	results := make([]string, n)
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range n {
		eg.Go(func() error {
			text, err := g.Completer.Complete(egCtx, SystemPrompt, message)
			if err != nil {
				log.Warn("failed to fetch suggestion", zap.Int("request", i), zap.Error(err))
				return nil
			}
			results[i] = text
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "generating suggestions")
	}

	suggestions := Dedupe(results)
	if len(suggestions) == 0 {
		return nil, ErrNoSuggestions
	}
	return suggestions, nil
}

// Dedupe cleans each candidate and drops blanks and repeats, keeping the
// first occurrence.
func Dedupe(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = clean(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// clean strips whitespace and the quoting models like to wrap replies in.
func clean(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{"```", "`", `"`, "'"} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			s = strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return s
}

// APIKey resolves the OpenAI key from OPENAI_API_KEY, then the credential
// store, then prompt. A prompted key is saved to the store.
func APIKey(store credentials.Store, prompt func() (string, error)) (string, error) {
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		return key, nil
	}

	rec, err := store.Load()
	switch {
	case err == nil && rec.OpenAIAPIKey != "":
		return rec.OpenAIAPIKey, nil
	case err == nil, errors.Is(err, credentials.ErrNotFound):
	default:
		return "", err
	}

	if prompt == nil {
		return "", errors.WithHintf(errors.New("no OpenAI API key configured"), "set %s", APIKeyEnv)
	}
	key, err := prompt()
	if err != nil {
		return "", errors.Wrap(err, "reading OpenAI API key")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrEmptyAPIKey
	}

	if err := store.Save(credentials.Update{OpenAIAPIKey: credentials.String(key)}); err != nil {
		return "", errors.Wrap(err, "saving OpenAI API key")
	}
	return key, nil
}
