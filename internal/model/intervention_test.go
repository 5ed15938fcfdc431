package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage(t *testing.T) {
	t.Parallel()

	t.Run("lookback 9 buckets evenly", func(t *testing.T) {
		t.Parallel()
		want := []int{0, 0, 0, 1, 1, 1, 2, 2, 2}
		for pos, stage := range want {
			assert.Equal(t, stage, Stage(pos, 9), "position %d", pos)
		}
	})

	t.Run("lookback 1 collapses to stage 0", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0, Stage(0, 1))
	})

	t.Run("never exceeds stage 2", func(t *testing.T) {
		t.Parallel()
		for lookback := 1; lookback <= 20; lookback++ {
			for pos := range lookback {
				s := Stage(pos, lookback)
				assert.GreaterOrEqual(t, s, 0)
				assert.LessOrEqual(t, s, 2)
			}
		}
	})

	t.Run("small lookbacks", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0, Stage(0, 2))
		assert.Equal(t, 1, Stage(1, 2))
		assert.Equal(t, []int{0, 1, 2}, []int{Stage(0, 3), Stage(1, 3), Stage(2, 3)})
		assert.Equal(t, 2, Stage(3, 4))
	})
}

func TestInterventionSpec_PrefixLen(t *testing.T) {
	t.Parallel()

	spec := InterventionSpec{Lookback: 3}
	for pos, want := range []int{0, 1, 2} {
		spec.Position = pos
		assert.Equal(t, want, spec.PrefixLen(3), "position %d", pos)
	}

	// Lookback beyond the trace length yields empty prefixes.
	spec = InterventionSpec{Lookback: 5, Position: 0}
	assert.Equal(t, 0, spec.PrefixLen(3))
	spec.Position = 4
	assert.Equal(t, 2, spec.PrefixLen(3))
}

func TestParseSeverities(t *testing.T) {
	t.Parallel()

	got, err := ParseSeverities([]string{"Minor", " major", "minor"})
	require.NoError(t, err)
	assert.Equal(t, []Severity{SeverityMinor, SeverityMajor}, got)

	_, err = ParseSeverities([]string{"extreme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extreme")
}

func TestSeverityRank(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, SeverityMinor.Rank())
	assert.Equal(t, 2, SeverityModerate.Rank())
	assert.Equal(t, 3, SeverityMajor.Rank())
	assert.Equal(t, 3, SeverityLegacy.Rank())
	assert.Equal(t, 0, Severity("other").Rank())
}

func TestRunStatisticsMerge(t *testing.T) {
	t.Parallel()

	a := RunStatistics{ProcessedQuestions: 1, TossedAnswers: 2, SameStages: [3]int{1, 0, 0}}
	b := RunStatistics{ProcessedQuestions: 2, TossedQuestions: 1, DifferentAnswers: 3, DifferentStages: [3]int{0, 1, 2}}
	a.Merge(b)

	assert.Equal(t, 3, a.ProcessedQuestions)
	assert.Equal(t, 1, a.TossedQuestions)
	assert.Equal(t, 2, a.TossedAnswers)
	assert.Equal(t, 3, a.DifferentAnswers)
	assert.Equal(t, [3]int{1, 0, 0}, a.SameStages)
	assert.Equal(t, [3]int{0, 1, 2}, a.DifferentStages)
}
