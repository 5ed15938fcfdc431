// Package faithfulness runs the chain-of-thought faithfulness test: it asks
// a model for numbered reasoning, doctors one step at a time near the end of
// that reasoning, re-queries the model from the doctored prefix and records
// how far the answer moves.
package faithfulness

import (
	"context"
	"hash/fnv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/faithcheck/internal/config"
	"github.com/sells-group/faithcheck/internal/evallog"
	"github.com/sells-group/faithcheck/internal/intervene"
	"github.com/sells-group/faithcheck/internal/model"
	"github.com/sells-group/faithcheck/internal/parse"
	"github.com/sells-group/faithcheck/internal/provider"
	"github.com/sells-group/faithcheck/internal/resilience"
	"github.com/sells-group/faithcheck/internal/scorer"
)

// Provider error policies.
const (
	// PolicySkip records the question as failed and moves on.
	PolicySkip = "skip"
	// PolicyAbort stops the whole run on the first provider error.
	PolicyAbort = "abort"
)

// Config controls one faithfulness evaluation.
type Config struct {
	// Lookback is the number of trailing positions to intervene at. Zero
	// uses each question's own trace length.
	Lookback int
	// Gradient iterates Severities; otherwise a single legacy intervention
	// is made per position and same/different answers are tallied.
	Gradient   bool
	Severities []model.Severity
	// Clamp caps numeric deviations at 1.
	Clamp bool
	// Seed makes number shifts reproducible per question.
	Seed uint64
	// Concurrency bounds how many questions are in flight. 1 is sequential.
	Concurrency     int
	OnProviderError string
}

// ConfigFrom converts the configuration file section.
func ConfigFrom(c config.FaithfulnessConfig) (Config, error) {
	sevs, err := model.ParseSeverities(c.Severities)
	if err != nil {
		return Config{}, eris.Wrap(err, "faithfulness: severities")
	}
	cfg := Config{
		Lookback:        c.Lookback,
		Gradient:        c.Gradient,
		Severities:      sevs,
		Clamp:           c.ClampDeviation,
		Seed:            c.Seed,
		Concurrency:     c.Concurrency,
		OnProviderError: c.OnProviderError,
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Lookback < 0 {
		return eris.Errorf("faithfulness: lookback must be >= 0, got %d", c.Lookback)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	switch strings.ToLower(c.OnProviderError) {
	case "", PolicySkip:
		c.OnProviderError = PolicySkip
	case PolicyAbort:
		c.OnProviderError = PolicyAbort
	default:
		return eris.Errorf("faithfulness: unknown provider error policy %q", c.OnProviderError)
	}
	if !c.Gradient {
		c.Severities = []model.Severity{model.SeverityLegacy}
		return nil
	}
	if len(c.Severities) == 0 {
		c.Severities = model.GradientSeverities
	}
	for _, sev := range c.Severities {
		if _, err := intervene.ForSeverity(sev); err != nil {
			return err
		}
	}
	return nil
}

// Outcome is everything one evaluation produced. Results are ordered by
// question, then position, then configured severity order.
type Outcome struct {
	Stats   model.RunStatistics
	Results []model.InterventionResult
}

// Driver evaluates questions against one model.
type Driver struct {
	provider provider.Provider
	model    string
	gen      model.GenerationConfig
	cfg      Config
	scorer   scorer.Scorer

	sink     *evallog.Sink
	log      *zap.Logger
	progress io.Writer
}

// Option configures a Driver.
type Option func(*Driver)

// WithGeneration sets the sampling parameters sent with every call.
func WithGeneration(gen model.GenerationConfig) Option {
	return func(d *Driver) { d.gen = gen }
}

// WithSink writes prompts and responses to evaluation transcripts.
func WithSink(s *evallog.Sink) Option {
	return func(d *Driver) { d.sink = s }
}

// WithLogger replaces the operational logger (default zap.L()).
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithProgress draws a progress bar on w. Nil disables it.
func WithProgress(w io.Writer) Option {
	return func(d *Driver) { d.progress = w }
}

// New creates a Driver. cfg is normalized: zero concurrency becomes 1, legacy
// mode uses a single legacy severity and gradient mode defaults to every
// severity.
func New(p provider.Provider, mdl string, cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	d := &Driver{
		provider: p,
		model:    mdl,
		cfg:      cfg,
		scorer:   scorer.Scorer{Clamp: cfg.Clamp},
		sink:     evallog.New(config.LoggingConfig{}),
		log:      zap.L(),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Config returns the normalized configuration.
func (d *Driver) Config() Config { return d.cfg }

// questionOutcome is what a single question contributes to the run.
type questionOutcome struct {
	stats   model.RunStatistics
	results []model.InterventionResult
}

// Evaluate runs every question. Each question is its own error boundary:
// under the skip policy a provider or transcript failure marks that
// question failed and discards its partial results; under abort, or when
// the circuit breaker is open, Evaluate stops and returns what finished
// alongside the error.
func (d *Driver) Evaluate(ctx context.Context, questions []model.Question) (*Outcome, error) {
	outcomes := make([]questionOutcome, len(questions))
	bar := NewProgress(d.progress, "faithfulness", len(questions))
	defer bar.Finish()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)

	for i, q := range questions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer bar.Increment()

			out, err := d.runQuestion(gctx, q)
			if err == nil {
				outcomes[i] = out
				return nil
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if d.cfg.OnProviderError == PolicyAbort || eris.Is(err, resilience.ErrCircuitOpen) {
				return err
			}

			d.log.Warn("faithfulness: question failed, skipping",
				zap.String("question_id", q.ID),
				zap.Error(err),
			)
			outcomes[i] = questionOutcome{stats: model.RunStatistics{FailedQuestions: 1}}
			return nil
		})
	}
	err := g.Wait()

	res := &Outcome{Results: []model.InterventionResult{}}
	for _, o := range outcomes {
		res.Stats.Merge(o.stats)
		res.Results = append(res.Results, o.results...)
	}
	if err != nil {
		return res, eris.Wrap(err, "faithfulness: evaluate")
	}
	return res, nil
}

// runQuestion evaluates one question against its own transcript, which is
// closed before it returns. A transcript that cannot be opened fails the
// question like a provider error does.
func (d *Driver) runQuestion(ctx context.Context, q model.Question) (questionOutcome, error) {
	qlog, release, err := d.sink.Question(model.TestFaithfulness, d.model, q.Dataset, q.Number)
	if err != nil {
		return questionOutcome{}, eris.Wrapf(err, "faithfulness: transcript for %s", q.ID)
	}
	defer func() {
		if err := release(); err != nil {
			d.log.Warn("faithfulness: close question transcript", zap.String("question_id", q.ID), zap.Error(err))
		}
	}()

	out, err := d.evaluateQuestion(ctx, q, qlog)
	if err != nil {
		qlog.Debug("question failed", zap.Error(err))
	}
	return out, err
}

// evaluateQuestion runs the per-question state machine: baseline request,
// baseline parse, then either toss or the intervention loop.
func (d *Driver) evaluateQuestion(ctx context.Context, q model.Question, log *zap.Logger) (questionOutcome, error) {
	var out questionOutcome

	prompt := QuestionPrompt(q.Text)
	log.Debug("baseline prompt", zap.String("question_id", q.ID), zap.String("prompt", prompt))

	resp, err := d.provider.Generate(ctx, d.model, prompt, d.gen)
	if err != nil {
		return out, eris.Wrapf(err, "faithfulness: baseline for %s", q.ID)
	}

	trace := parse.ParseResponse(resp.Text)
	log.Debug("baseline response",
		zap.String("response", resp.Text),
		zap.Strings("steps", trace.Steps),
		zap.String("answer", trace.Answer),
	)

	if !trace.Usable() {
		out.stats.TossedQuestions = 1
		out.stats.TossedAnswers = len(trace.Steps)
		log.Debug("question tossed", zap.Int("steps", len(trace.Steps)), zap.Bool("has_answer", trace.HasAnswer))
		return out, nil
	}
	out.stats.ProcessedQuestions = 1

	lookback := d.cfg.Lookback
	if lookback == 0 {
		lookback = len(trace.Steps)
	}
	iv := intervene.New(d.cfg.Seed + questionSeed(q.ID))

	for pos := range lookback {
		n := model.InterventionSpec{Position: pos, Lookback: lookback}.PrefixLen(len(trace.Steps))
		if n == 0 {
			continue
		}
		for _, sev := range d.cfg.Severities {
			spec := model.InterventionSpec{Position: pos, Lookback: lookback, Severity: sev}
			if err := d.intervene(ctx, q, trace, spec, n, iv, log, &out); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// intervene doctors the last step of the n-step prefix, re-queries the model
// and records the scored result into out.
func (d *Driver) intervene(ctx context.Context, q model.Question, trace model.ReasoningTrace, spec model.InterventionSpec, n int, iv *intervene.Intervener, log *zap.Logger, out *questionOutcome) error {
	ops, err := intervene.ForSeverity(spec.Severity)
	if err != nil {
		return err
	}

	prefix := trace.CloneSteps()[:n]
	mut := iv.Apply(prefix[n-1], ops)
	if !mut.Changed() {
		out.stats.NoOpInterventions++
		d.log.Warn("faithfulness: intervention left step unchanged",
			zap.String("question_id", q.ID),
			zap.Int("position", spec.Position),
			zap.String("severity", string(spec.Severity)),
			zap.String("step", mut.Original),
		)
	}
	prefix[n-1] = intervene.Annotate(mut.Text)

	prompt := ContinuationPrompt(q.Text, prefix)
	resp, err := d.provider.Generate(ctx, d.model, prompt, d.gen)
	if err != nil {
		return eris.Wrapf(err, "faithfulness: intervention %s position %d %s", q.ID, spec.Position, spec.Severity)
	}

	answer, ok := parse.ParseAnswer(resp.Text)
	log.Debug("intervention",
		zap.Int("position", spec.Position),
		zap.String("severity", string(spec.Severity)),
		zap.Stringer("operators", mut.Applied),
		zap.String("prompt", prompt),
		zap.String("response", resp.Text),
		zap.String("answer", answer),
	)
	if !ok {
		out.stats.TossedAnswers++
		return nil
	}

	dev, _ := d.scorer.Score(trace.Answer, answer)
	r := model.InterventionResult{
		QuestionID:     q.ID,
		Dataset:        q.Dataset,
		Position:       spec.Position,
		Stage:          spec.Stage(),
		Severity:       spec.Severity,
		OriginalAnswer: trace.Answer,
		NewAnswer:      answer,
		Deviation:      dev,
		Mutated:        mut.Changed(),
	}
	out.results = append(out.results, r)

	if !d.cfg.Gradient {
		if r.Changed() {
			out.stats.DifferentAnswers++
			out.stats.DifferentStages[r.Stage]++
		} else {
			out.stats.SameAnswers++
			out.stats.SameStages[r.Stage]++
		}
	}
	return nil
}

func questionSeed(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}
