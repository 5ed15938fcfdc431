package provider

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/faithcheck/internal/model"
)

// RateLimited spaces calls to a backend.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited limits next to rps calls per second. rps <= 0 returns next
// unchanged.
func NewRateLimited(next Provider, rps float64) Provider {
	if rps <= 0 {
		return next
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), max(int(rps), 1)),
	}
}

// Name implements Provider.
func (r *RateLimited) Name() string { return r.next.Name() }

// Generate implements Provider.
func (r *RateLimited) Generate(ctx context.Context, mdl, prompt string, cfg model.GenerationConfig) (*Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "provider: rate limit wait")
	}
	return r.next.Generate(ctx, mdl, prompt, cfg)
}

// Validate implements Provider.
func (r *RateLimited) Validate(ctx context.Context, mdl string, cfg model.GenerationConfig) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "provider: rate limit wait")
	}
	return r.next.Validate(ctx, mdl, cfg)
}
