package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/faithcheck/internal/model"
	"github.com/sells-group/faithcheck/internal/resilience"
	"github.com/sells-group/faithcheck/pkg/ollama"
)

func newOllamaServer(t *testing.T, handler http.HandlerFunc) *Ollama {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllama(ollama.NewClient(srv.URL))
}

func TestOllamaOptions(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ollamaOptions(model.GenerationConfig{}))

	temp := 0.1
	maxTokens, topK, seed := 256, 20, 3
	opts := ollamaOptions(model.GenerationConfig{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		TopK:        &topK,
		Seed:        &seed,
		Stop:        []string{"\n\n"},
		Extra:       map[string]any{"num_ctx": 8192, "temperature": 0.9},
	})
	assert.Equal(t, 0.1, opts["temperature"])
	assert.Equal(t, 256, opts["num_predict"])
	assert.Equal(t, 20, opts["top_k"])
	assert.Equal(t, 3, opts["seed"])
	assert.Equal(t, []string{"\n\n"}, opts["stop"])
	assert.Equal(t, 8192, opts["num_ctx"])
	assert.NotContains(t, opts, "top_p")
}

func TestOllama_Generate(t *testing.T) {
	t.Parallel()

	p := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollama.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)
		json.NewEncoder(w).Encode(ollama.GenerateResponse{ //nolint:errcheck
			Response:        "1. cos(7)*10 = 7.54\nAnswer: 10.54",
			Done:            true,
			PromptEvalCount: 50,
			EvalCount:       20,
		})
	})

	c, err := p.Generate(context.Background(), "llama3", "What is cos(7)*10+3?", model.GenerationConfig{})
	require.NoError(t, err)
	assert.Equal(t, "1. cos(7)*10 = 7.54\nAnswer: 10.54", c.Text)
	assert.Equal(t, int64(50), c.InputTokens)
	assert.Equal(t, int64(20), c.OutputTokens)
}

func TestOllama_Generate_ServerBusy(t *testing.T) {
	t.Parallel()

	p := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := p.Generate(context.Background(), "llama3", "hi", model.GenerationConfig{})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestOllama_Validate(t *testing.T) {
	t.Parallel()

	p := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/show":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["model"] != "llama3" {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":"model not found"}`)) //nolint:errcheck
				return
			}
			w.Write([]byte(`{"modelfile":"FROM llama3","details":{"family":"llama"}}`)) //nolint:errcheck
		case "/api/generate":
			var req ollama.GenerateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.EqualValues(t, validationMaxTokens, req.Options["num_predict"])
			w.Write([]byte(`{"response":"Hello","done":true}`)) //nolint:errcheck
		}
	})

	require.NoError(t, p.Validate(context.Background(), "llama3", model.GenerationConfig{}))

	err := p.Validate(context.Background(), "mistral", model.GenerationConfig{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ollama.ErrModelNotFound))
}
