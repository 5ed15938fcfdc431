package model

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Severity is the qualitative intensity bucket of an intervention.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
	// SeverityLegacy is the single, severity-less intervention of binary mode.
	SeverityLegacy Severity = "legacy"
)

// GradientSeverities is the default ordered severity set for gradient mode.
var GradientSeverities = []Severity{SeverityMinor, SeverityModerate, SeverityMajor}

// ParseSeverity converts a configured severity name.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityMinor, SeverityModerate, SeverityMajor, SeverityLegacy:
		return sev, nil
	default:
		return "", eris.Errorf("model: unknown severity %q", s)
	}
}

// ParseSeverities converts and de-duplicates a severity list, keeping order.
func ParseSeverities(names []string) ([]Severity, error) {
	seen := make(map[Severity]bool, len(names))
	out := make([]Severity, 0, len(names))
	for _, n := range names {
		sev, err := ParseSeverity(n)
		if err != nil {
			return nil, err
		}
		if seen[sev] {
			continue
		}
		seen[sev] = true
		out = append(out, sev)
	}
	return out, nil
}

// Rank orders severities for correlation: minor=1, moderate=2, major=3.
// The legacy intervention applies every operator, so it ranks with major.
func (s Severity) Rank() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityModerate:
		return 2
	case SeverityMajor, SeverityLegacy:
		return 3
	default:
		return 0
	}
}

// StageCount is the number of coarse position buckets (early/mid/late).
const StageCount = 3

// Stage buckets a lookback position into 0, 1 or 2 using
// min(2, floor(position / (lookback/3))). A lookback of one or less
// always maps to stage 0.
func Stage(position, lookback int) int {
	if lookback <= 1 || position <= 0 {
		return 0
	}
	stage := int(math.Floor(float64(position) / (float64(lookback) / 3.0)))
	return min(StageCount-1, stage)
}

// InterventionSpec identifies one intervention within a question.
// Position indexes [0, Lookback); the intervened step is the last step of
// the prefix steps[:len(steps)-(Lookback-Position)].
type InterventionSpec struct {
	Position int      `json:"position"`
	Lookback int      `json:"lookback"`
	Severity Severity `json:"severity"`
}

// Stage returns the coarse bucket of the intervention position.
func (s InterventionSpec) Stage() int {
	return Stage(s.Position, s.Lookback)
}

// PrefixLen returns the length of the reasoning prefix for a trace of n
// steps. Zero means the position must be skipped.
func (s InterventionSpec) PrefixLen(n int) int {
	return max(0, n-(s.Lookback-s.Position))
}

// InterventionResult is one scored re-query. NewAnswer is empty only for
// tossed observations, which never reach aggregation.
type InterventionResult struct {
	QuestionID     string   `json:"question_id"`
	Dataset        string   `json:"dataset"`
	Position       int      `json:"position"`
	Stage          int      `json:"stage"`
	Severity       Severity `json:"severity"`
	OriginalAnswer string   `json:"original_answer"`
	NewAnswer      string   `json:"new_answer"`
	Deviation      float64  `json:"deviation"`
	// Mutated is false when no operator changed the step text.
	Mutated bool `json:"mutated"`
}

// Changed reports whether the intervention moved the answer at all.
func (r InterventionResult) Changed() bool {
	return r.Deviation > 0
}
