package provider

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/faithcheck/internal/model"
	"github.com/sells-group/faithcheck/internal/resilience"
	"github.com/sells-group/faithcheck/pkg/openai"
)

// OpenAI generates with the chat completions API.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI creates an OpenAI provider over client.
func NewOpenAI(client openai.Client) *OpenAI {
	return &OpenAI{client: client}
}

// Name implements Provider.
func (o *OpenAI) Name() string { return NameOpenAI }

// Generate implements Provider.
func (o *OpenAI) Generate(ctx context.Context, mdl, prompt string, cfg model.GenerationConfig) (*Completion, error) {
	req, err := chatRequest(mdl, prompt, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if code, ok := openai.StatusCode(err); ok {
			err = resilience.MarkStatus(err, code)
		}
		return nil, eris.Wrapf(err, "provider: openai generate %s", mdl)
	}

	return &Completion{
		Text:         resp.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Validate implements Provider.
func (o *OpenAI) Validate(ctx context.Context, mdl string, cfg model.GenerationConfig) error {
	if _, err := o.client.GetModel(ctx, mdl); err != nil {
		return eris.Wrapf(err, "provider: openai model %s unavailable", mdl)
	}
	if _, err := o.Generate(ctx, mdl, validationPrompt, cfg.WithMaxTokens(validationMaxTokens)); err != nil {
		return eris.Wrap(err, "provider: openai validation request")
	}
	return nil
}

func chatRequest(mdl, prompt string, cfg model.GenerationConfig) (openai.ChatRequest, error) {
	req := openai.ChatRequest{
		Model:     mdl,
		Prompt:    prompt,
		MaxTokens: cfg.MaxTokensOr(0),
		Seed:      cfg.Seed,
		Stop:      cfg.Stop,
	}
	if cfg.Temperature != nil {
		v := float32(*cfg.Temperature)
		req.Temperature = &v
	}
	if cfg.TopP != nil {
		v := float32(*cfg.TopP)
		req.TopP = &v
	}
	if cfg.TopK != nil {
		zap.L().Debug("provider: openai ignores top_k", zap.Int("top_k", *cfg.TopK))
	}

	for key, val := range cfg.Extra {
		switch key {
		case "reasoning_effort":
			req.ReasoningEffort = fmt.Sprint(val)
		case "presence_penalty", "frequency_penalty":
			f, ok := toFloat(val)
			if !ok {
				return req, eris.Errorf("provider: openai %s must be a number, got %T", key, val)
			}
			v := float32(f)
			if key == "presence_penalty" {
				req.PresencePenalty = &v
			} else {
				req.FrequencyPenalty = &v
			}
		case "system":
			req.System = fmt.Sprint(val)
		default:
			zap.L().Warn("provider: openai ignores unknown generation option", zap.String("key", key))
		}
	}
	return req, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
