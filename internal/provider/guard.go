package provider

import (
	"context"
	"time"

	"github.com/sells-group/faithcheck/internal/model"
	"github.com/sells-group/faithcheck/internal/resilience"
)

// GuardConfig configures a Guarded provider.
type GuardConfig struct {
	// MaxAttempts counts the first call. 1 (the default) never retries.
	MaxAttempts      int
	FailureThreshold int
	ResetTimeout     time.Duration
	// InitialBackoff defaults to one second.
	InitialBackoff time.Duration
}

// Guarded fails fast once a backend keeps failing and optionally retries
// transient errors.
type Guarded struct {
	next    Provider
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// NewGuarded wraps next with a circuit breaker and retry policy.
func NewGuarded(next Provider, cfg GuardConfig) *Guarded {
	return &Guarded{
		next: next,
		breaker: resilience.NewBreaker(next.Name(), resilience.BreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			ResetTimeout:     cfg.ResetTimeout,
		}),
		retry: resilience.RetryConfig{
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			JitterFraction: 0.25,
		},
	}
}

// Name implements Provider.
func (g *Guarded) Name() string { return g.next.Name() }

// Generate implements Provider.
func (g *Guarded) Generate(ctx context.Context, mdl, prompt string, cfg model.GenerationConfig) (*Completion, error) {
	retry := g.retry
	retry.OnRetry = resilience.RetryLogger(g.next.Name(), mdl)

	return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (*Completion, error) {
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (*Completion, error) {
			return g.next.Generate(ctx, mdl, prompt, cfg)
		})
	})
}

// Validate implements Provider. Validation is never retried.
func (g *Guarded) Validate(ctx context.Context, mdl string, cfg model.GenerationConfig) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.Validate(ctx, mdl, cfg)
	})
}
