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
	"github.com/sells-group/faithcheck/pkg/anthropic"
)

func newClaudeServer(t *testing.T, handler http.HandlerFunc) *Claude {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClaude(anthropic.NewClient("test-key", anthropic.WithBaseURL(srv.URL), anthropic.WithMaxRetries(0)))
}

func writeClaudeMessage(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"id":          "msg_1",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-haiku-4-5",
		"stop_reason": "end_turn",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"usage":       map[string]any{"input_tokens": 30, "output_tokens": 12},
	})
}

func TestClaude_Generate(t *testing.T) {
	t.Parallel()

	var body map[string]any
	p := newClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeClaudeMessage(w, "1. 3+4=7\nAnswer: 7")
	})

	topK := 40
	temp := 0.0
	c, err := p.Generate(context.Background(), "claude-haiku-4-5", "What is 3+4?", model.GenerationConfig{
		TopK:        &topK,
		Temperature: &temp,
		Extra:       map[string]any{"metadata": map[string]any{"user_id": "faithcheck"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1. 3+4=7\nAnswer: 7", c.Text)
	assert.Equal(t, int64(30), c.InputTokens)
	assert.Equal(t, int64(12), c.OutputTokens)

	assert.EqualValues(t, claudeDefaultMaxTokens, body["max_tokens"])
	assert.EqualValues(t, 40, body["top_k"])
	assert.EqualValues(t, 0, body["temperature"])
	assert.Equal(t, map[string]any{"user_id": "faithcheck"}, body["metadata"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestClaude_Generate_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		transient bool
	}{
		{529, true},
		{429, true},
		{400, false},
		{401, false},
	}
	for _, tt := range tests {
		p := newClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"nope"}}`)) //nolint:errcheck
		})

		_, err := p.Generate(context.Background(), "claude-haiku-4-5", "hi", model.GenerationConfig{})
		require.Error(t, err)
		assert.Equal(t, tt.transient, resilience.IsTransient(err), tt.status)
		assert.Contains(t, err.Error(), "provider: claude generate claude-haiku-4-5")
	}
}

func TestClaude_Validate(t *testing.T) {
	t.Parallel()

	var body map[string]any
	p := newClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models/claude-haiku-4-5":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"claude-haiku-4-5","type":"model","display_name":"Claude Haiku 4.5","created_at":"2025-10-01T00:00:00Z"}`)) //nolint:errcheck
		case "/v1/messages":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeClaudeMessage(w, "Hello!")
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"type":"error","error":{"type":"not_found_error","message":"missing"}}`)) //nolint:errcheck
		}
	})

	maxTokens := 2048
	require.NoError(t, p.Validate(context.Background(), "claude-haiku-4-5", model.GenerationConfig{MaxTokens: &maxTokens}))
	assert.EqualValues(t, validationMaxTokens, body["max_tokens"])

	err := p.Validate(context.Background(), "claude-nope", model.GenerationConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claude model claude-nope unavailable")
}
