package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/faithcheck/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Provider     ProviderConfig         `yaml:"provider" mapstructure:"provider"`
	Generation   model.GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Faithfulness FaithfulnessConfig     `yaml:"faithfulness" mapstructure:"faithfulness"`
	Datasets     DatasetsConfig         `yaml:"datasets" mapstructure:"datasets"`
	Logging      LoggingConfig          `yaml:"logging" mapstructure:"logging"`
	Store        StoreConfig            `yaml:"store" mapstructure:"store"`
	Pricing      PricingConfig          `yaml:"pricing" mapstructure:"pricing"`
	Log          LogConfig              `yaml:"log" mapstructure:"log"`
}

// ProviderConfig selects and configures the model provider.
type ProviderConfig struct {
	Name                    string  `yaml:"name" mapstructure:"name"`
	Model                   string  `yaml:"model" mapstructure:"model"`
	AnthropicKey            string  `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicBaseURL        string  `yaml:"anthropic_base_url" mapstructure:"anthropic_base_url"`
	OpenAIKey               string  `yaml:"openai_key" mapstructure:"openai_key"`
	OpenAIBaseURL           string  `yaml:"openai_base_url" mapstructure:"openai_base_url"`
	OllamaBaseURL           string  `yaml:"ollama_base_url" mapstructure:"ollama_base_url"`
	RequestsPerSecond       float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxAttempts             int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// FaithfulnessConfig configures the chain-of-thought faithfulness test.
type FaithfulnessConfig struct {
	// Lookback is the number of trailing intervention positions. 0 uses the
	// full trace length of each question.
	Lookback          int      `yaml:"lookback" mapstructure:"lookback"`
	Gradient          bool     `yaml:"gradient" mapstructure:"gradient"`
	Severities        []string `yaml:"severities" mapstructure:"severities"`
	CorrelationMethod string   `yaml:"correlation_method" mapstructure:"correlation_method"`
	ClampDeviation    bool     `yaml:"clamp_deviation" mapstructure:"clamp_deviation"`
	Seed              uint64   `yaml:"seed" mapstructure:"seed"`
	Concurrency       int      `yaml:"concurrency" mapstructure:"concurrency"`
	OnProviderError   string   `yaml:"on_provider_error" mapstructure:"on_provider_error"`
}

// DatasetsConfig configures where datasets are read from.
type DatasetsConfig struct {
	// Dir optionally overrides the embedded datasets with <dir>/<name>.yaml files.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LoggingConfig configures evaluation result logs (not the process logger).
type LoggingConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	File        string `yaml:"file" mapstructure:"file"`
	PerQuestion bool   `yaml:"per_question" mapstructure:"per_question"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `yaml:"path" mapstructure:"path"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    map[string]ModelPricing `yaml:"openai" mapstructure:"openai"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FAITHCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys also come from the conventional vendor variables.
	_ = v.BindEnv("provider.anthropic_key", "FAITHCHECK_PROVIDER_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("provider.openai_key", "FAITHCHECK_PROVIDER_OPENAI_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("provider.ollama_base_url", "FAITHCHECK_PROVIDER_OLLAMA_BASE_URL", "OLLAMA_BASE_URL")

	// Defaults
	v.SetDefault("provider.name", "ollama")
	v.SetDefault("provider.ollama_base_url", "http://localhost:11434")
	v.SetDefault("provider.requests_per_second", 0)
	v.SetDefault("provider.max_attempts", 1)
	v.SetDefault("provider.circuit_failure_threshold", 5)
	v.SetDefault("provider.circuit_reset_secs", 30)
	v.SetDefault("faithfulness.lookback", 0)
	v.SetDefault("faithfulness.gradient", false)
	v.SetDefault("faithfulness.severities", []string{"minor", "moderate", "major"})
	v.SetDefault("faithfulness.correlation_method", "pearson")
	v.SetDefault("faithfulness.clamp_deviation", false)
	v.SetDefault("faithfulness.seed", 1)
	v.SetDefault("faithfulness.concurrency", 1)
	v.SetDefault("faithfulness.on_provider_error", "skip")
	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.dir", "./testresults")
	v.SetDefault("logging.per_question", false)
	v.SetDefault("store.path", "faithcheck.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks values that Load cannot reject by type alone.
func (c *Config) Validate() error {
	f := c.Faithfulness
	if f.Lookback < 0 {
		return eris.Errorf("config: faithfulness.lookback must be >= 0, got %d", f.Lookback)
	}
	if f.Concurrency < 1 {
		return eris.Errorf("config: faithfulness.concurrency must be >= 1, got %d", f.Concurrency)
	}
	if _, err := model.ParseSeverities(f.Severities); err != nil {
		return eris.Wrap(err, "config: faithfulness.severities")
	}
	switch f.CorrelationMethod {
	case "pearson", "spearman", "kendall":
	default:
		return eris.Errorf("config: unknown faithfulness.correlation_method %q", f.CorrelationMethod)
	}
	switch f.OnProviderError {
	case "skip", "abort":
	default:
		return eris.Errorf("config: unknown faithfulness.on_provider_error %q", f.OnProviderError)
	}
	if c.Provider.RequestsPerSecond < 0 {
		return eris.New("config: provider.requests_per_second must be >= 0")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
