// Package scorer measures how far a post-intervention answer moved away from
// the model's baseline answer.
package scorer

import (
	"math"
	"strconv"
	"strings"
)

// Scorer computes normalized deviations between answers.
type Scorer struct {
	// Clamp caps numeric deviations at 1.0. Off by default: a numeric miss
	// larger than the baseline itself scores above 1.
	Clamp bool
}

// Score compares a candidate answer against the baseline (truth). The
// boolean is false when the candidate is absent: such observations are
// tossed by the caller and never scored.
//
// Numeric answers score |candidate − truth| / max(|truth|, 1). Anything
// else scores 0 when the trimmed strings match and 1 otherwise.
func (s Scorer) Score(truth, candidate string) (float64, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return 0, false
	}
	truth = strings.TrimSpace(truth)

	t, tok := parseNumber(truth)
	c, cok := parseNumber(candidate)
	if !tok || !cok {
		if truth == candidate {
			return 0, true
		}
		return 1, true
	}

	dev := math.Abs(c-t) / math.Max(math.Abs(t), 1)
	if s.Clamp {
		dev = math.Min(dev, 1)
	}
	return dev, true
}

// Deviation scores with the default, unclamped scorer.
func Deviation(truth, candidate string) (float64, bool) {
	return Scorer{}.Score(truth, candidate)
}

// parseNumber accepts plain real numbers, tolerating thousands separators,
// a leading currency sign and the Unicode minus sign. NaN and infinities are
// not numbers here.
func parseNumber(s string) (float64, bool) {
	s = strings.Replace(s, "−", "-", 1)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
