package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/faithcheck/internal/model"
	"github.com/sells-group/faithcheck/internal/resilience"
	"github.com/sells-group/faithcheck/pkg/openai"
)

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAI(openai.NewClient("test-key", openai.WithBaseURL(srv.URL+"/v1")))
}

func TestChatRequest(t *testing.T) {
	t.Parallel()

	temp, topP := 0.3, 0.8
	seed, maxTokens, topK := 11, 300, 5
	req, err := chatRequest("gpt-4o-mini", "What is 3+4?", model.GenerationConfig{
		Temperature: &temp,
		TopP:        &topP,
		TopK:        &topK,
		Seed:        &seed,
		MaxTokens:   &maxTokens,
		Stop:        []string{"END"},
		Extra: map[string]any{
			"reasoning_effort":  "low",
			"presence_penalty":  0.5,
			"frequency_penalty": 1,
			"system":            "Be terse.",
			"logit_bias":        map[string]int{"1": 2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, "What is 3+4?", req.Prompt)
	assert.Equal(t, "Be terse.", req.System)
	assert.Equal(t, 300, req.MaxTokens)
	assert.Equal(t, &seed, req.Seed)
	assert.InDelta(t, 0.3, *req.Temperature, 1e-6)
	assert.InDelta(t, 0.8, *req.TopP, 1e-6)
	assert.InDelta(t, 0.5, *req.PresencePenalty, 1e-6)
	assert.InDelta(t, 1.0, *req.FrequencyPenalty, 1e-6)
	assert.Equal(t, "low", req.ReasoningEffort)
}

func TestChatRequest_Defaults(t *testing.T) {
	t.Parallel()

	req, err := chatRequest("gpt-4o", "q", model.GenerationConfig{})
	require.NoError(t, err)
	assert.Zero(t, req.MaxTokens)
	assert.Nil(t, req.Temperature)
	assert.Nil(t, req.Seed)
}

func TestChatRequest_BadPenalty(t *testing.T) {
	t.Parallel()

	_, err := chatRequest("gpt-4o", "q", model.GenerationConfig{Extra: map[string]any{"presence_penalty": "high"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presence_penalty must be a number")
}

func TestOpenAI_Generate(t *testing.T) {
	t.Parallel()

	p := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id": "chatcmpl-1",
			"choices": []map[string]any{{
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "1. 19%7=5\nAnswer: 21.5"},
			}},
			"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 10},
		})
	})

	c, err := p.Generate(context.Background(), "gpt-4o-mini", "What is (19%7)*43/10?", model.GenerationConfig{})
	require.NoError(t, err)
	assert.Equal(t, "1. 19%7=5\nAnswer: 21.5", c.Text)
	assert.Equal(t, int64(40), c.InputTokens)
	assert.Equal(t, int64(10), c.OutputTokens)
}

func TestOpenAI_Generate_RateLimitedIsTransient(t *testing.T) {
	t.Parallel()

	p := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`)) //nolint:errcheck
	})

	_, err := p.Generate(context.Background(), "gpt-4o-mini", "hi", model.GenerationConfig{})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestOpenAI_Validate(t *testing.T) {
	t.Parallel()

	var body map[string]any
	p := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/models/gpt-4o-mini":
			w.Write([]byte(`{"id":"gpt-4o-mini","object":"model","owned_by":"openai"}`)) //nolint:errcheck
		case "/v1/chat/completions":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.Write([]byte(`{"id":"x","choices":[{"message":{"role":"assistant","content":"Hello"}}]}`)) //nolint:errcheck
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`)) //nolint:errcheck
		}
	})

	require.NoError(t, p.Validate(context.Background(), "gpt-4o-mini", model.GenerationConfig{}))
	assert.EqualValues(t, validationMaxTokens, body["max_completion_tokens"])

	err := p.Validate(context.Background(), "gpt-nope", model.GenerationConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai model gpt-nope unavailable")
}
