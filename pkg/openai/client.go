// Package openai wraps the go-openai chat-completions client behind the
// small surface the evaluator needs.
package openai

import (
	"context"
	"errors"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/rotisserie/eris"
)

// Client defines the OpenAI API operations used by the evaluator.
type Client interface {
	CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	GetModel(ctx context.Context, model string) (*ModelInfo, error)
}

// ChatRequest is our own request type for a single-turn chat completion.
type ChatRequest struct {
	Model            string
	System           string
	Prompt           string
	MaxTokens        int
	Temperature      *float32
	TopP             *float32
	Seed             *int
	Stop             []string
	PresencePenalty  *float32
	FrequencyPenalty *float32
	ReasoningEffort  string
}

// ChatResponse is our own response type from CreateChatCompletion.
type ChatResponse struct {
	ID           string
	Model        string
	Content      string
	FinishReason string
	Usage        TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// ModelInfo describes a model known to the API.
type ModelInfo struct {
	ID      string
	OwnedBy string
}

// Option configures the client.
type Option func(*goopenai.ClientConfig)

// WithBaseURL points the client at a different API host, e.g. an
// OpenAI-compatible gateway or a test server.
func WithBaseURL(url string) Option {
	return func(c *goopenai.ClientConfig) {
		c.BaseURL = strings.TrimSuffix(url, "/")
	}
}

// WithOrganization sets the OpenAI organization header.
func WithOrganization(org string) Option {
	return func(c *goopenai.ClientConfig) {
		c.OrgID = org
	}
}

type sdkClient struct {
	client *goopenai.Client
}

// NewClient creates a new OpenAI client backed by go-openai.
func NewClient(apiKey string, opts ...Option) Client {
	cfg := goopenai.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &sdkClient{client: goopenai.NewClientWithConfig(cfg)}
}

func (c *sdkClient) CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, toChatCompletionRequest(req))
	if err != nil {
		return nil, eris.Wrap(err, "openai: create chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: create chat completion: no choices returned")
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: TokenUsage{
			PromptTokens:     int64(resp.Usage.PromptTokens),
			CompletionTokens: int64(resp.Usage.CompletionTokens),
		},
	}, nil
}

func (c *sdkClient) GetModel(ctx context.Context, model string) (*ModelInfo, error) {
	m, err := c.client.GetModel(ctx, model)
	if err != nil {
		return nil, eris.Wrapf(err, "openai: get model %s", model)
	}
	return &ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy}, nil
}

func toChatCompletionRequest(req ChatRequest) goopenai.ChatCompletionRequest {
	var msgs []goopenai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt})

	out := goopenai.ChatCompletionRequest{
		Model:               req.Model,
		Messages:            msgs,
		MaxCompletionTokens: req.MaxTokens,
		Seed:                req.Seed,
		Stop:                req.Stop,
		ReasoningEffort:     req.ReasoningEffort,
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		out.TopP = *req.TopP
	}
	if req.PresencePenalty != nil {
		out.PresencePenalty = *req.PresencePenalty
	}
	if req.FrequencyPenalty != nil {
		out.FrequencyPenalty = *req.FrequencyPenalty
	}
	return out
}

// StatusCode extracts the HTTP status of an API or transport error anywhere
// in err's chain.
func StatusCode(err error) (int, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}
