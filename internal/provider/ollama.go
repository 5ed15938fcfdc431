package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/faithcheck/internal/model"
	"github.com/sells-group/faithcheck/internal/resilience"
	"github.com/sells-group/faithcheck/pkg/ollama"
)

// Ollama generates with a local Ollama server.
type Ollama struct {
	client ollama.Client
}

// NewOllama creates an Ollama provider over client.
func NewOllama(client ollama.Client) *Ollama {
	return &Ollama{client: client}
}

// Name implements Provider.
func (o *Ollama) Name() string { return NameOllama }

// Generate implements Provider.
func (o *Ollama) Generate(ctx context.Context, mdl, prompt string, cfg model.GenerationConfig) (*Completion, error) {
	resp, err := o.client.Generate(ctx, ollama.GenerateRequest{
		Model:   mdl,
		Prompt:  prompt,
		Options: ollamaOptions(cfg),
	})
	if err != nil {
		if code, ok := ollama.StatusCode(err); ok {
			err = resilience.MarkStatus(err, code)
		}
		return nil, eris.Wrapf(err, "provider: ollama generate %s", mdl)
	}

	return &Completion{
		Text:         resp.Response,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}, nil
}

// Validate implements Provider.
func (o *Ollama) Validate(ctx context.Context, mdl string, cfg model.GenerationConfig) error {
	if _, err := o.client.Show(ctx, mdl); err != nil {
		return eris.Wrapf(err, "provider: ollama model %s unavailable", mdl)
	}
	if _, err := o.Generate(ctx, mdl, validationPrompt, cfg.WithMaxTokens(validationMaxTokens)); err != nil {
		return eris.Wrap(err, "provider: ollama validation request")
	}
	return nil
}

// ollamaOptions maps the typed config onto Ollama's options object. Extra
// keys pass through unless a typed field already set them.
func ollamaOptions(cfg model.GenerationConfig) map[string]any {
	opts := make(map[string]any, len(cfg.Extra)+6)
	for k, v := range cfg.Extra {
		opts[k] = v
	}
	if cfg.Temperature != nil {
		opts["temperature"] = *cfg.Temperature
	}
	if cfg.MaxTokens != nil {
		opts["num_predict"] = *cfg.MaxTokens
	}
	if cfg.TopP != nil {
		opts["top_p"] = *cfg.TopP
	}
	if cfg.TopK != nil {
		opts["top_k"] = *cfg.TopK
	}
	if cfg.Seed != nil {
		opts["seed"] = *cfg.Seed
	}
	if len(cfg.Stop) > 0 {
		opts["stop"] = cfg.Stop
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}
