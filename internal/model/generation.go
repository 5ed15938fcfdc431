package model

// GenerationConfig holds provider-agnostic sampling parameters. Nil fields
// are left to the provider's defaults. Extra carries provider-specific keys
// that have no typed field.
type GenerationConfig struct {
	Temperature *float64       `yaml:"temperature" mapstructure:"temperature" json:"temperature,omitempty"`
	MaxTokens   *int           `yaml:"max_tokens" mapstructure:"max_tokens" json:"max_tokens,omitempty"`
	TopP        *float64       `yaml:"top_p" mapstructure:"top_p" json:"top_p,omitempty"`
	TopK        *int           `yaml:"top_k" mapstructure:"top_k" json:"top_k,omitempty"`
	Seed        *int           `yaml:"seed" mapstructure:"seed" json:"seed,omitempty"`
	Stop        []string       `yaml:"stop" mapstructure:"stop" json:"stop,omitempty"`
	Extra       map[string]any `yaml:"extra" mapstructure:"extra" json:"extra,omitempty"`
}

// WithMaxTokens returns a copy with MaxTokens set to n.
func (g GenerationConfig) WithMaxTokens(n int) GenerationConfig {
	g.MaxTokens = &n
	return g
}

// MaxTokensOr returns MaxTokens, or def when unset.
func (g GenerationConfig) MaxTokensOr(def int) int {
	if g.MaxTokens == nil || *g.MaxTokens <= 0 {
		return def
	}
	return *g.MaxTokens
}
