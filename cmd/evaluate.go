package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/faithcheck/internal/config"
	"github.com/sells-group/faithcheck/internal/cost"
	"github.com/sells-group/faithcheck/internal/dataset"
	"github.com/sells-group/faithcheck/internal/evallog"
	"github.com/sells-group/faithcheck/internal/faithfulness"
	"github.com/sells-group/faithcheck/internal/model"
	"github.com/sells-group/faithcheck/internal/provider"
	"github.com/sells-group/faithcheck/internal/report"
	"github.com/sells-group/faithcheck/internal/store"
	"github.com/sells-group/faithcheck/internal/sycophancy"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a model on one or more tests",
	Long: "Runs the selected tests (cot_faithfulness, sycophancy) over the selected datasets " +
		"and prints a report. Unknown dataset names are skipped.",
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.String("model", "", "model name (overrides provider.model)")
	f.String("provider", "", "provider: ollama, claude, openai (overrides provider.name)")
	f.StringSlice("tests", []string{string(model.TestFaithfulness)}, "tests to run: cot_faithfulness, sycophancy")
	f.StringSlice("datasets", []string{"debug_math_1"}, "datasets to evaluate")
	f.Int("lookback", 0, "trailing reasoning positions to intervene at (0 = whole trace)")
	f.Bool("gradient", false, "score minor/moderate/major interventions instead of a single legacy one")
	f.StringSlice("severities", nil, "gradient severities, in order")
	f.String("correlation", "", "severity/deviation correlation: pearson, spearman or kendall")
	f.Bool("clamp", false, "cap numeric deviations at 1")
	f.Int("concurrency", 0, "questions evaluated in parallel")
	f.String("on-provider-error", "", "skip or abort when a provider call fails")
	f.Bool("per-question-logs", false, "write one transcript file per question")
	f.Bool("no-store", false, "do not record the run in the SQLite store")

	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applyEvaluateFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Provider.Model == "" {
		return eris.New("evaluate: a model is required (--model or provider.model)")
	}

	testNames, _ := cmd.Flags().GetStringSlice("tests")
	tests, err := parseTests(testNames)
	if err != nil {
		return err
	}
	datasets, _ := cmd.Flags().GetStringSlice("datasets")

	p, metered, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	if err := p.Validate(ctx, cfg.Provider.Model, cfg.Generation); err != nil {
		return eris.Wrapf(err, "evaluate: validate model %s", cfg.Provider.Model)
	}

	var st store.Store
	noStore, _ := cmd.Flags().GetBool("no-store")
	if cfg.Store.Path != "" && !noStore {
		sqlite, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer sqlite.Close() //nolint:errcheck
		if err := sqlite.Migrate(ctx); err != nil {
			return eris.Wrap(err, "evaluate: migrate store")
		}
		st = sqlite
	}

	sink := evallog.New(cfg.Logging)
	defer func() {
		if err := sink.Close(); err != nil {
			zap.L().Warn("evaluate: close transcripts", zap.Error(err))
		}
	}()

	e := &evaluation{
		cfg:      cfg,
		provider: p,
		usage:    metered.Usage,
		registry: dataset.NewRegistry(cfg.Datasets.Dir),
		store:    st,
		sink:     sink,
		out:      os.Stdout,
		color:    isatty.IsTerminal(os.Stdout.Fd()),
		progress: faithfulness.TerminalOutput(),
	}
	return e.run(ctx, tests, datasets)
}

// applyEvaluateFlags copies explicitly set flags over the loaded config.
func applyEvaluateFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("model") {
		c.Provider.Model, _ = f.GetString("model")
	}
	if f.Changed("provider") {
		c.Provider.Name, _ = f.GetString("provider")
	}
	if f.Changed("lookback") {
		c.Faithfulness.Lookback, _ = f.GetInt("lookback")
	}
	if f.Changed("gradient") {
		c.Faithfulness.Gradient, _ = f.GetBool("gradient")
	}
	if f.Changed("severities") {
		c.Faithfulness.Severities, _ = f.GetStringSlice("severities")
	}
	if f.Changed("correlation") {
		c.Faithfulness.CorrelationMethod, _ = f.GetString("correlation")
	}
	if f.Changed("clamp") {
		c.Faithfulness.ClampDeviation, _ = f.GetBool("clamp")
	}
	if f.Changed("concurrency") {
		c.Faithfulness.Concurrency, _ = f.GetInt("concurrency")
	}
	if f.Changed("on-provider-error") {
		c.Faithfulness.OnProviderError, _ = f.GetString("on-provider-error")
	}
	if f.Changed("per-question-logs") {
		c.Logging.PerQuestion, _ = f.GetBool("per-question-logs")
	}
}

// parseTests rejects unknown test names before any work starts.
func parseTests(names []string) ([]model.TestType, error) {
	var out []model.TestType
	for _, n := range names {
		switch t := model.TestType(strings.ToLower(strings.TrimSpace(n))); t {
		case model.TestFaithfulness, model.TestSycophancy:
			out = append(out, t)
		default:
			return nil, eris.Errorf("evaluate: unknown test %q", n)
		}
	}
	if len(out) == 0 {
		return nil, eris.New("evaluate: no tests selected")
	}
	return out, nil
}

// buildProvider constructs the configured backend, wrapped with rate
// limiting, circuit breaking and usage metering.
func buildProvider(c *config.Config) (provider.Provider, *provider.Metered, error) {
	base, err := provider.New(c.Provider)
	if err != nil {
		return nil, nil, err
	}
	metered := provider.NewMetered(provider.Wrap(base, c.Provider), cost.NewCalculator(costRates(c.Pricing)))
	return metered, metered, nil
}

// costRates overlays configured pricing on the default rates.
func costRates(p config.PricingConfig) cost.Rates {
	rates := cost.DefaultRates()
	for name, r := range p.Anthropic {
		rates.Anthropic[name] = cost.ModelRate{Input: r.Input, Output: r.Output}
	}
	for name, r := range p.OpenAI {
		rates.OpenAI[name] = cost.ModelRate{Input: r.Input, Output: r.Output}
	}
	return rates
}

// evaluation runs the selected tests for one model and records the run.
type evaluation struct {
	cfg      *config.Config
	provider provider.Provider
	usage    func() model.TokenUsage
	registry *dataset.Registry
	store    store.Store
	sink     *evallog.Sink
	out      io.Writer
	color    bool
	progress io.Writer
}

func (e *evaluation) run(ctx context.Context, tests []model.TestType, datasets []string) error {
	mdl := e.cfg.Provider.Model
	log := zap.L().With(zap.String("model", mdl))

	runLog, err := e.sink.Run(mdl + ".log")
	if err != nil {
		return err
	}

	var runID string
	if e.store != nil {
		settings, err := json.Marshal(map[string]any{
			"faithfulness": e.cfg.Faithfulness,
			"generation":   e.cfg.Generation,
		})
		if err != nil {
			return eris.Wrap(err, "evaluate: marshal settings")
		}
		r, err := e.store.CreateRun(ctx, model.Run{
			Model:    mdl,
			Provider: e.provider.Name(),
			Tests:    tests,
			Datasets: datasets,
			Settings: settings,
		})
		if err != nil {
			return err
		}
		runID = r.ID
		if err := e.store.UpdateRunStatus(ctx, runID, model.RunStatusRunning); err != nil {
			return err
		}
		log = log.With(zap.String("run_id", runID))
	}

	result := &model.RunResult{}
	var reports []string
	var runErr error

	for _, test := range tests {
		switch test {
		case model.TestFaithfulness:
			text, stats, err := e.faithfulness(ctx, runID, datasets, runLog)
			result.Statistics.Merge(stats)
			if text != "" {
				reports = append(reports, text)
			}
			runErr = err
		case model.TestSycophancy:
			s, err := sycophancy.Run(ctx, e.registry, datasets, runLog)
			if err == nil {
				log.Info("sycophancy datasets iterated", zap.Strings("datasets", s.Datasets), zap.Int("rows", s.Rows))
			}
			runErr = err
		}
		if runErr != nil {
			break
		}
	}

	usage := e.usage()
	result.Report = strings.Join(reports, "\n")
	result.TotalTokens = usage.Total()
	result.TotalCost = usage.Cost

	if runErr != nil {
		result.Error = runErr.Error()
		if e.store != nil {
			// The run context may be canceled; record the failure regardless.
			if err := e.store.FailRun(context.WithoutCancel(ctx), runID, result); err != nil {
				log.Error("evaluate: record failed run", zap.Error(err))
			}
		}
		return runErr
	}

	if e.store != nil {
		if err := e.store.CompleteRun(ctx, runID, result); err != nil {
			return err
		}
	}
	log.Info("evaluation complete",
		zap.Int64("tokens", result.TotalTokens),
		zap.Float64("cost_usd", result.TotalCost),
	)
	return nil
}

// faithfulness runs the faithfulness test and prints its report. The
// report is also written to the run transcript.
func (e *evaluation) faithfulness(ctx context.Context, runID string, datasets []string, runLog *zap.Logger) (string, model.RunStatistics, error) {
	fcfg, err := faithfulness.ConfigFrom(e.cfg.Faithfulness)
	if err != nil {
		return "", model.RunStatistics{}, err
	}

	names := e.registry.Resolve(model.TestFaithfulness, datasets)
	var questions []model.Question
	for _, name := range names {
		qs, err := e.registry.Load(name)
		if err != nil {
			return "", model.RunStatistics{}, err
		}
		questions = append(questions, qs...)
	}

	driver, err := faithfulness.New(e.provider, e.cfg.Provider.Model, fcfg,
		faithfulness.WithGeneration(e.cfg.Generation),
		faithfulness.WithSink(e.sink),
		faithfulness.WithProgress(e.progress),
	)
	if err != nil {
		return "", model.RunStatistics{}, err
	}

	outcome, evalErr := driver.Evaluate(ctx, questions)
	if outcome == nil {
		return "", model.RunStatistics{}, evalErr
	}

	summary := report.Aggregate(report.Input{
		Model:             e.cfg.Provider.Model,
		Provider:          e.provider.Name(),
		Datasets:          names,
		Gradient:          fcfg.Gradient,
		Severities:        driver.Config().Severities,
		CorrelationMethod: correlationFor(fcfg, e.cfg.Faithfulness.CorrelationMethod),
		Stats:             outcome.Stats,
		Results:           outcome.Results,
		Usage:             e.usage(),
	})
	text := report.Render(summary, false)
	runLog.Info("faithfulness report\n" + text)
	fmt.Fprintln(e.out, report.Render(summary, e.color))

	if e.store != nil && runID != "" {
		if err := e.store.SaveResults(context.WithoutCancel(ctx), runID, outcome.Results); err != nil {
			return text, outcome.Stats, err
		}
	}
	return text, outcome.Stats, evalErr
}

// correlationFor only reports a correlation where severities vary.
func correlationFor(fcfg faithfulness.Config, method string) string {
	if !fcfg.Gradient {
		return ""
	}
	return method
}
