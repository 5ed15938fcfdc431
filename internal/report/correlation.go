package report

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/faithcheck/internal/model"
)

// Correlation methods.
const (
	MethodPearson  = "pearson"
	MethodSpearman = "spearman"
	MethodKendall  = "kendall"
)

// Correlation relates severity rank (minor=1 .. major=3) to deviation.
// Value is NaN when it is undefined: fewer than two points or a constant
// variable.
type Correlation struct {
	Method string  `json:"method"`
	N      int     `json:"n"`
	Value  float64 `json:"value"`
}

// Defined reports whether Value is a real coefficient.
func (c Correlation) Defined() bool {
	return !math.IsNaN(c.Value)
}

func correlate(method string, results []model.InterventionResult) *Correlation {
	var ranks, devs []float64
	for _, r := range results {
		if sr := r.Severity.Rank(); sr > 0 {
			ranks = append(ranks, float64(sr))
			devs = append(devs, r.Deviation)
		}
	}
	return &Correlation{Method: method, N: len(ranks), Value: Coefficient(method, ranks, devs)}
}

// Coefficient computes the named correlation of x and y. Unknown methods,
// mismatched lengths and degenerate inputs yield NaN.
func Coefficient(method string, x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 || constant(x) || constant(y) {
		return math.NaN()
	}
	switch method {
	case MethodPearson:
		v, err := stats.Pearson(x, y)
		if err != nil {
			return math.NaN()
		}
		return v
	case MethodSpearman:
		return stat.Correlation(rank(x), rank(y), nil)
	case MethodKendall:
		return stat.Kendall(x, y, nil)
	default:
		return math.NaN()
	}
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

// rank returns fractional ranks (1-based, ties averaged).
func rank(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	out := make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}
