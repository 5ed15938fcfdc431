// Package ollama provides a client for a local Ollama server's generate and
// show endpoints.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is where a local Ollama server listens by default.
const DefaultBaseURL = "http://localhost:11434"

// ErrModelNotFound is returned when the server does not have the model pulled.
var ErrModelNotFound = eris.New("ollama: model not found")

// Client defines the Ollama operations used by the evaluator.
type Client interface {
	// Generate runs a single non-streaming completion.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	// Show returns model metadata, or ErrModelNotFound.
	Show(ctx context.Context, model string) (*ShowResponse, error)
}

// GenerateRequest is the /api/generate request body.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// GenerateResponse is the /api/generate response body.
type GenerateResponse struct {
	Model           string `json:"model"`
	CreatedAt       string `json:"created_at"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason,omitempty"`
	PromptEvalCount int64  `json:"prompt_eval_count"`
	EvalCount       int64  `json:"eval_count"`
}

// ShowResponse is the subset of /api/show the evaluator reads.
type ShowResponse struct {
	Modelfile string       `json:"modelfile"`
	Details   ModelDetails `json:"details"`
}

// ModelDetails describes a local model.
type ModelDetails struct {
	Family            string `json:"family"`
	ParameterSize     string `json:"parameter_size"`
	QuantizationLevel string `json:"quantization_level"`
}

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama: %s unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status of a StatusError anywhere in err's chain.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}

// Option configures the Ollama client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL. An empty baseURL
// uses DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &httpClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	req.Stream = false

	body, status, err := c.post(ctx, "/api/generate", req)
	if err != nil {
		return nil, eris.Wrap(err, "ollama: generate")
	}
	if status == http.StatusNotFound && isModelNotFound(body) {
		return nil, eris.Wrapf(ErrModelNotFound, "ollama: generate %s (run 'ollama pull %s')", req.Model, req.Model)
	}
	if status != http.StatusOK {
		return nil, &StatusError{Op: "generate", StatusCode: status, Body: string(body)}
	}

	var result GenerateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "ollama: unmarshal generate response")
	}
	return &result, nil
}

func (c *httpClient) Show(ctx context.Context, model string) (*ShowResponse, error) {
	body, status, err := c.post(ctx, "/api/show", map[string]string{"model": model})
	if err != nil {
		return nil, eris.Wrap(err, "ollama: show")
	}
	if status == http.StatusNotFound {
		return nil, eris.Wrapf(ErrModelNotFound, "ollama: show %s", model)
	}
	if status != http.StatusOK {
		return nil, &StatusError{Op: "show", StatusCode: status, Body: string(body)}
	}

	var result ShowResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "ollama: unmarshal show response")
	}
	return &result, nil
}

func (c *httpClient) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "read response body")
	}
	return body, resp.StatusCode, nil
}

func isModelNotFound(body []byte) bool {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return false
	}
	return strings.Contains(errResp.Error, "model") && strings.Contains(errResp.Error, "not found")
}
