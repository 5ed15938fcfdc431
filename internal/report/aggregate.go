// Package report reduces intervention results into stage and severity
// summaries and renders them for people.
package report

import (
	"slices"

	"github.com/montanaflynn/stats"

	"github.com/sells-group/faithcheck/internal/model"
)

// Input is a read-only snapshot of one finished evaluation.
type Input struct {
	Model      string
	Provider   string
	Datasets   []string
	Gradient   bool
	Severities []model.Severity
	// CorrelationMethod selects the severity/deviation correlation line.
	// Empty skips it.
	CorrelationMethod string
	Stats             model.RunStatistics
	Results           []model.InterventionResult
	Usage             model.TokenUsage
}

// SeverityRate is the change rate within one severity.
type SeverityRate struct {
	Severity      model.Severity `json:"severity"`
	Count         int            `json:"count"`
	Changed       int            `json:"changed"`
	Rate          float64        `json:"rate"`
	MeanDeviation float64        `json:"mean_deviation"`
}

// Breakdown is the change rate of a result set, overall and per severity.
type Breakdown struct {
	Count      int            `json:"count"`
	Changed    int            `json:"changed"`
	Rate       float64        `json:"rate"`
	Severities []SeverityRate `json:"severities"`
}

// Summary is the full aggregation of an evaluation.
type Summary struct {
	Model       string                      `json:"model"`
	Provider    string                      `json:"provider"`
	Datasets    []string                    `json:"datasets"`
	Gradient    bool                        `json:"gradient"`
	Stats       model.RunStatistics         `json:"stats"`
	Overall     Breakdown                   `json:"overall"`
	Stages      [model.StageCount]Breakdown `json:"stages"`
	Correlation *Correlation                `json:"correlation,omitempty"`
	Usage       model.TokenUsage            `json:"usage"`
}

// ChangeRate is the share of results whose deviation is above zero. An
// empty set has rate 0.
func ChangeRate(results []model.InterventionResult) float64 {
	if len(results) == 0 {
		return 0
	}
	return float64(countChanged(results)) / float64(len(results))
}

// SeverityChangeRate is ChangeRate restricted to one severity.
func SeverityChangeRate(results []model.InterventionResult, sev model.Severity) float64 {
	return ChangeRate(filterSeverity(results, sev))
}

// Aggregate computes the summary. It is a pure reduction: result order
// does not matter.
func Aggregate(in Input) Summary {
	sevs := severityOrder(in.Severities, in.Results)

	s := Summary{
		Model:    in.Model,
		Provider: in.Provider,
		Datasets: in.Datasets,
		Gradient: in.Gradient,
		Stats:    in.Stats,
		Overall:  breakdown(in.Results, sevs),
		Usage:    in.Usage,
	}

	var byStage [model.StageCount][]model.InterventionResult
	for _, r := range in.Results {
		if r.Stage >= 0 && r.Stage < model.StageCount {
			byStage[r.Stage] = append(byStage[r.Stage], r)
		}
	}
	for i := range byStage {
		s.Stages[i] = breakdown(byStage[i], sevs)
	}

	if in.CorrelationMethod != "" {
		s.Correlation = correlate(in.CorrelationMethod, in.Results)
	}
	return s
}

func breakdown(results []model.InterventionResult, sevs []model.Severity) Breakdown {
	b := Breakdown{
		Count:      len(results),
		Changed:    countChanged(results),
		Rate:       ChangeRate(results),
		Severities: make([]SeverityRate, 0, len(sevs)),
	}
	for _, sev := range sevs {
		subset := filterSeverity(results, sev)
		b.Severities = append(b.Severities, SeverityRate{
			Severity:      sev,
			Count:         len(subset),
			Changed:       countChanged(subset),
			Rate:          ChangeRate(subset),
			MeanDeviation: meanDeviation(subset),
		})
	}
	return b
}

// severityOrder keeps the configured order and appends any severity seen
// only in results, ranked.
func severityOrder(configured []model.Severity, results []model.InterventionResult) []model.Severity {
	out := slices.Clone(configured)
	var extra []model.Severity
	for _, r := range results {
		if !slices.Contains(out, r.Severity) && !slices.Contains(extra, r.Severity) {
			extra = append(extra, r.Severity)
		}
	}
	slices.SortStableFunc(extra, func(a, b model.Severity) int { return a.Rank() - b.Rank() })
	return append(out, extra...)
}

func filterSeverity(results []model.InterventionResult, sev model.Severity) []model.InterventionResult {
	var out []model.InterventionResult
	for _, r := range results {
		if r.Severity == sev {
			out = append(out, r)
		}
	}
	return out
}

func countChanged(results []model.InterventionResult) int {
	n := 0
	for _, r := range results {
		if r.Changed() {
			n++
		}
	}
	return n
}

func meanDeviation(results []model.InterventionResult) float64 {
	if len(results) == 0 {
		return 0
	}
	devs := make([]float64, len(results))
	for i, r := range results {
		devs[i] = r.Deviation
	}
	m, err := stats.Mean(devs)
	if err != nil {
		return 0
	}
	return m
}
