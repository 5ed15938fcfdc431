// Package provider abstracts the language model backends the evaluator can
// query and decorates them with rate limiting, circuit breaking and usage
// metering.
package provider

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/faithcheck/internal/config"
	"github.com/sells-group/faithcheck/internal/model"
	"github.com/sells-group/faithcheck/pkg/anthropic"
	"github.com/sells-group/faithcheck/pkg/ollama"
	"github.com/sells-group/faithcheck/pkg/openai"
)

// Canonical provider names.
const (
	NameClaude = "claude"
	NameOpenAI = "openai"
	NameOllama = "ollama"
)

// Validation sends a short greeting capped at a few tokens.
const (
	validationPrompt    = "Hi"
	validationMaxTokens = 10
)

var (
	// ErrUnknownProvider is returned for a provider name with no backend.
	ErrUnknownProvider = eris.New("provider: unknown provider")
	// ErrMissingAPIKey is returned when a hosted backend has no credentials.
	ErrMissingAPIKey = eris.New("provider: missing API key")
)

// Provider generates text from a single prompt.
type Provider interface {
	// Name returns the canonical backend name.
	Name() string
	// Generate sends prompt to model and returns the completion text.
	Generate(ctx context.Context, model, prompt string, cfg model.GenerationConfig) (*Completion, error)
	// Validate checks that model exists and accepts cfg.
	Validate(ctx context.Context, model string, cfg model.GenerationConfig) error
}

// Completion is the text and token usage of one generation.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Canonical maps a case-insensitive provider name or alias to its canonical
// name: "anthropic" is Claude and "gpt" is OpenAI.
func Canonical(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "claude", "anthropic":
		return NameClaude, nil
	case "openai", "gpt":
		return NameOpenAI, nil
	case "ollama":
		return NameOllama, nil
	default:
		return "", eris.Wrapf(ErrUnknownProvider, "provider: %q", name)
	}
}

// New constructs the backend named by cfg.Name. Configuration problems are
// reported here, before any dataset work starts.
func New(cfg config.ProviderConfig) (Provider, error) {
	name, err := Canonical(cfg.Name)
	if err != nil {
		return nil, err
	}

	switch name {
	case NameClaude:
		if cfg.AnthropicKey == "" {
			return nil, eris.Wrap(ErrMissingAPIKey, "provider: claude requires ANTHROPIC_API_KEY")
		}
		var opts []anthropic.Option
		if cfg.AnthropicBaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.AnthropicBaseURL))
		}
		// Retries are decided by the Guarded wrapper.
		opts = append(opts, anthropic.WithMaxRetries(0))
		return NewClaude(anthropic.NewClient(cfg.AnthropicKey, opts...)), nil
	case NameOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, eris.Wrap(ErrMissingAPIKey, "provider: openai requires OPENAI_API_KEY")
		}
		var opts []openai.Option
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return NewOpenAI(openai.NewClient(cfg.OpenAIKey, opts...)), nil
	default:
		return NewOllama(ollama.NewClient(cfg.OllamaBaseURL)), nil
	}
}

// Wrap decorates p with the rate limit and circuit breaker/retry policy from
// cfg. The result is still a plain Provider.
func Wrap(p Provider, cfg config.ProviderConfig) Provider {
	p = NewRateLimited(p, cfg.RequestsPerSecond)
	return NewGuarded(p, GuardConfig{
		MaxAttempts:      cfg.MaxAttempts,
		FailureThreshold: cfg.CircuitFailureThreshold,
		ResetTimeout:     time.Duration(cfg.CircuitResetSecs) * time.Second,
	})
}
