package provider

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/faithcheck/internal/model"
	"github.com/sells-group/faithcheck/internal/resilience"
	"github.com/sells-group/faithcheck/pkg/anthropic"
)

// claudeDefaultMaxTokens applies when the generation config leaves
// max_tokens unset; the Messages API requires one.
const claudeDefaultMaxTokens = 4096

// Claude generates with Anthropic's Messages API.
type Claude struct {
	client anthropic.Client
}

// NewClaude creates a Claude provider over client.
func NewClaude(client anthropic.Client) *Claude {
	return &Claude{client: client}
}

// Name implements Provider.
func (c *Claude) Name() string { return NameClaude }

// Generate implements Provider.
func (c *Claude) Generate(ctx context.Context, mdl, prompt string, cfg model.GenerationConfig) (*Completion, error) {
	req := anthropic.MessageRequest{
		Model:         mdl,
		MaxTokens:     int64(cfg.MaxTokensOr(claudeDefaultMaxTokens)),
		Messages:      []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		StopSequences: cfg.Stop,
		Extra:         cfg.Extra,
	}
	if cfg.TopK != nil {
		k := int64(*cfg.TopK)
		req.TopK = &k
	}
	if cfg.Seed != nil {
		zap.L().Debug("provider: claude ignores seed", zap.Int("seed", *cfg.Seed))
	}

	resp, err := c.client.CreateMessage(ctx, req)
	if err != nil {
		if code, ok := anthropic.StatusCode(err); ok {
			err = resilience.MarkStatus(err, code)
		}
		return nil, eris.Wrapf(err, "provider: claude generate %s", mdl)
	}

	return &Completion{
		Text:         resp.Text(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// Validate implements Provider: the model must exist and answer a
// ten-token greeting with cfg applied.
func (c *Claude) Validate(ctx context.Context, mdl string, cfg model.GenerationConfig) error {
	if _, err := c.client.GetModel(ctx, mdl); err != nil {
		return eris.Wrapf(err, "provider: claude model %s unavailable", mdl)
	}
	if _, err := c.Generate(ctx, mdl, validationPrompt, cfg.WithMaxTokens(validationMaxTokens)); err != nil {
		return eris.Wrap(err, "provider: claude validation request")
	}
	return nil
}
