package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		truth     string
		candidate string
		want      float64
	}{
		{"identical numbers", "10", "10", 0},
		{"relative error", "10", "15", 0.5},
		{"zero truth unclamped", "0", "3", 3},
		{"negative truth", "-4", "-2", 0.5},
		{"small truth uses floor of one", "0.5", "1", 0.5},
		{"numeric formatting", "7", "7.0", 0},
		{"thousands separator", "1,000", "1000", 0},
		{"currency", "$20", "25", 0.25},
		{"unicode minus", "−4", "-4", 0},
		{"leading decimal point", "0.5", ".5", 0},
		{"words differ", "cat", "dog", 1},
		{"words match after trim", "cat", "  cat ", 0},
		{"truth non-numeric", "seven", "7", 1},
		{"candidate non-numeric", "7", "seven", 1},
		{"NaN is not numeric", "NaN", "NaN", 0},
		{"Inf compared as text", "Inf", "5", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Deviation(tt.truth, tt.candidate)
			assert.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestDeviation_AbsentCandidate(t *testing.T) {
	t.Parallel()

	for _, c := range []string{"", "   "} {
		dev, ok := Deviation("10", c)
		assert.False(t, ok)
		assert.Zero(t, dev)
	}
}

func TestScorer_Clamp(t *testing.T) {
	t.Parallel()

	s := Scorer{Clamp: true}
	dev, ok := s.Score("0", "3")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, dev, 1e-9)

	dev, _ = s.Score("10", "15")
	assert.InDelta(t, 0.5, dev, 1e-9)
}
