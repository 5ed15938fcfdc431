package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OLLAMA_BASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Provider.Name)
	assert.Equal(t, "http://localhost:11434", cfg.Provider.OllamaBaseURL)
	assert.Equal(t, 1, cfg.Provider.MaxAttempts)
	assert.Equal(t, 5, cfg.Provider.CircuitFailureThreshold)
	assert.Equal(t, 30, cfg.Provider.CircuitResetSecs)
	assert.Zero(t, cfg.Provider.RequestsPerSecond)

	assert.Equal(t, 0, cfg.Faithfulness.Lookback)
	assert.False(t, cfg.Faithfulness.Gradient)
	assert.Equal(t, []string{"minor", "moderate", "major"}, cfg.Faithfulness.Severities)
	assert.Equal(t, "pearson", cfg.Faithfulness.CorrelationMethod)
	assert.False(t, cfg.Faithfulness.ClampDeviation)
	assert.Equal(t, uint64(1), cfg.Faithfulness.Seed)
	assert.Equal(t, 1, cfg.Faithfulness.Concurrency)
	assert.Equal(t, "skip", cfg.Faithfulness.OnProviderError)

	assert.True(t, cfg.Logging.Enabled)
	assert.Equal(t, "./testresults", cfg.Logging.Dir)
	assert.False(t, cfg.Logging.PerQuestion)
	assert.Equal(t, "faithcheck.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	assert.Nil(t, cfg.Generation.Temperature)
	assert.Nil(t, cfg.Generation.MaxTokens)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
provider:
  name: claude
  model: claude-haiku-4-5
  requests_per_second: 2.5
generation:
  temperature: 0.2
  max_tokens: 512
  stop: ["END"]
  extra:
    reasoning_effort: low
faithfulness:
  lookback: 3
  gradient: true
  severities: [major, minor]
  correlation_method: kendall
pricing:
  anthropic:
    claude-haiku-4-5:
      input: 1.0
      output: 5.0
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.Provider.Name)
	assert.Equal(t, "claude-haiku-4-5", cfg.Provider.Model)
	assert.InDelta(t, 2.5, cfg.Provider.RequestsPerSecond, 1e-9)
	require.NotNil(t, cfg.Generation.Temperature)
	assert.InDelta(t, 0.2, *cfg.Generation.Temperature, 1e-9)
	require.NotNil(t, cfg.Generation.MaxTokens)
	assert.Equal(t, 512, *cfg.Generation.MaxTokens)
	assert.Nil(t, cfg.Generation.TopP)
	assert.Equal(t, []string{"END"}, cfg.Generation.Stop)
	assert.Equal(t, "low", cfg.Generation.Extra["reasoning_effort"])
	assert.Equal(t, 3, cfg.Faithfulness.Lookback)
	assert.True(t, cfg.Faithfulness.Gradient)
	assert.Equal(t, []string{"major", "minor"}, cfg.Faithfulness.Severities)
	assert.Equal(t, "kendall", cfg.Faithfulness.CorrelationMethod)
	assert.InDelta(t, 5.0, cfg.Pricing.Anthropic["claude-haiku-4-5"].Output, 1e-9)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 1, cfg.Faithfulness.Concurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
faithfulness:
  lookback: 3
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FAITHCHECK_FAITHFULNESS_LOOKBACK", "5")
	t.Setenv("FAITHCHECK_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Faithfulness.Lookback)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadVendorKeyEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("OPENAI_API_KEY", "sk-openai-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", cfg.Provider.AnthropicKey)
	assert.Equal(t, "sk-openai-test", cfg.Provider.OpenAIKey)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("provider: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the Load defaults for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Faithfulness.Severities = []string{"minor", "moderate", "major"}
	cfg.Faithfulness.CorrelationMethod = "pearson"
	cfg.Faithfulness.Concurrency = 1
	cfg.Faithfulness.OnProviderError = "skip"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "negative lookback", mutate: func(c *Config) { c.Faithfulness.Lookback = -1 }, errMsg: "lookback must be >= 0"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Faithfulness.Concurrency = 0 }, errMsg: "concurrency must be >= 1"},
		{name: "unknown severity", mutate: func(c *Config) { c.Faithfulness.Severities = []string{"minor", "extreme"} }, errMsg: "severities"},
		{name: "unknown correlation", mutate: func(c *Config) { c.Faithfulness.CorrelationMethod = "cosine" }, errMsg: "correlation_method"},
		{name: "spearman ok", mutate: func(c *Config) { c.Faithfulness.CorrelationMethod = "spearman" }},
		{name: "unknown error policy", mutate: func(c *Config) { c.Faithfulness.OnProviderError = "retry" }, errMsg: "on_provider_error"},
		{name: "abort ok", mutate: func(c *Config) { c.Faithfulness.OnProviderError = "abort" }},
		{name: "negative rate", mutate: func(c *Config) { c.Provider.RequestsPerSecond = -1 }, errMsg: "requests_per_second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
