// Package cost estimates the USD cost of model provider token usage.
package cost

import "strings"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    map[string]ModelRate `yaml:"openai" mapstructure:"openai"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Cost returns the cost of one call. Providers without pricing (local
// Ollama models) and unknown models cost 0.
func (c *Calculator) Cost(provider, model string, input, output int64) float64 {
	var table map[string]ModelRate
	switch provider {
	case "claude":
		table = c.rates.Anthropic
	case "openai":
		table = c.rates.OpenAI
	default:
		return 0
	}

	rate, ok := lookup(table, model)
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// lookup matches the model exactly, then by the longest configured prefix so
// dated snapshots ("claude-haiku-4-5-20251001") price like their alias.
func lookup(table map[string]ModelRate, model string) (ModelRate, bool) {
	if rate, ok := table[model]; ok {
		return rate, true
	}
	best, bestLen := ModelRate{}, 0
	for name, rate := range table {
		if strings.HasPrefix(model, name) && len(name) > bestLen {
			best, bestLen = rate, len(name)
		}
	}
	return best, bestLen > 0
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5": {Input: 3.00, Output: 15.00},
			"claude-opus-4-5":   {Input: 5.00, Output: 25.00},
			"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},
		},
		OpenAI: map[string]ModelRate{
			"gpt-4o":      {Input: 2.50, Output: 10.00},
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
			"gpt-4.1":     {Input: 2.00, Output: 8.00},
			"o3-mini":     {Input: 1.10, Output: 4.40},
		},
	}
}
