package provider

import (
	"context"
	"sync"

	"github.com/sells-group/faithcheck/internal/cost"
	"github.com/sells-group/faithcheck/internal/model"
)

// Metered accumulates token usage and estimated cost across calls. It is
// safe for concurrent use.
type Metered struct {
	next Provider
	calc *cost.Calculator

	mu    sync.Mutex
	usage model.TokenUsage
}

// NewMetered wraps next. A nil calc records tokens without cost.
func NewMetered(next Provider, calc *cost.Calculator) *Metered {
	return &Metered{next: next, calc: calc}
}

// Name implements Provider.
func (m *Metered) Name() string { return m.next.Name() }

// Generate implements Provider.
func (m *Metered) Generate(ctx context.Context, mdl, prompt string, cfg model.GenerationConfig) (*Completion, error) {
	c, err := m.next.Generate(ctx, mdl, prompt, cfg)
	if err != nil {
		return nil, err
	}
	m.record(mdl, c)
	return c, nil
}

// Validate implements Provider. Validation traffic is not metered.
func (m *Metered) Validate(ctx context.Context, mdl string, cfg model.GenerationConfig) error {
	return m.next.Validate(ctx, mdl, cfg)
}

// Usage returns the totals so far.
func (m *Metered) Usage() model.TokenUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

func (m *Metered) record(mdl string, c *Completion) {
	u := model.TokenUsage{Calls: 1, InputTokens: c.InputTokens, OutputTokens: c.OutputTokens}
	if m.calc != nil {
		u.Cost = m.calc.Cost(m.next.Name(), mdl, c.InputTokens, c.OutputTokens)
	}
	m.mu.Lock()
	m.usage.Add(u)
	m.mu.Unlock()
}
