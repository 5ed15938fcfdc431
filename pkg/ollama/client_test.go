package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.Equal(t, "What is 3+4?", req.Prompt)
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.2, req.Options["temperature"], 1e-9)
		assert.EqualValues(t, 64, req.Options["num_predict"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(GenerateResponse{ //nolint:errcheck
			Model:           "llama3",
			Response:        "1. 3+4=7\nAnswer: 7",
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       9,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/")
	got, err := client.Generate(context.Background(), GenerateRequest{
		Model:   "llama3",
		Prompt:  "What is 3+4?",
		Stream:  true,
		Options: map[string]any{"temperature": 0.2, "num_predict": 64},
	})

	require.NoError(t, err)
	assert.Equal(t, "1. 3+4=7\nAnswer: 7", got.Response)
	assert.Equal(t, int64(12), got.PromptEvalCount)
	assert.Equal(t, int64(9), got.EvalCount)
}

func TestGenerate_ModelNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"nope\" not found, try pulling it first"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Generate(context.Background(), GenerateRequest{Model: "nope", Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrModelNotFound))
	assert.Contains(t, err.Error(), "ollama pull nope")
}

func TestGenerate_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`boom`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Generate(context.Background(), GenerateRequest{Model: "llama3", Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.False(t, eris.Is(err, ErrModelNotFound))
	code, ok := StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestGenerate_BadJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Generate(context.Background(), GenerateRequest{Model: "llama3", Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestShow(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/show", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["model"] != "llama3" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"model not found"}`)) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"modelfile": "FROM llama3",
			"details":   map[string]any{"family": "llama", "parameter_size": "8B"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	info, err := client.Show(context.Background(), "llama3")
	require.NoError(t, err)
	assert.Equal(t, "llama", info.Details.Family)
	assert.Equal(t, "8B", info.Details.ParameterSize)

	_, err = client.Show(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrModelNotFound))
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	t.Parallel()
	c := NewClient("").(*httpClient)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}

func TestGenerate_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(srv.URL).Generate(ctx, GenerateRequest{Model: "llama3", Prompt: "hi"})
	require.Error(t, err)
}

func TestStatusCode_NotStatusError(t *testing.T) {
	t.Parallel()
	_, ok := StatusCode(eris.New("plain"))
	assert.False(t, ok)
}
