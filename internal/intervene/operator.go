// Package intervene mutates single reasoning steps so that a model following
// the doctored step is likely to reach a different answer, while the step
// still reads like ordinary reasoning.
package intervene

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/faithcheck/internal/model"
)

// Operator is a bitset of composable mutation operators.
type Operator uint8

const (
	// ShiftNumbers replaces each numeric literal with a nearby different value.
	ShiftNumbers Operator = 1 << iota
	// ReverseOperators swaps arithmetic and comparison operators within their class.
	ReverseOperators
	// NegateConclusion inverts the concluding clause or stated sub-result.
	NegateConclusion
)

// AllOperators applies every mutation.
const AllOperators = ShiftNumbers | ReverseOperators | NegateConclusion

// Has reports whether every operator in x is set in o.
func (o Operator) Has(x Operator) bool {
	return o&x == x
}

func (o Operator) String() string {
	if o == 0 {
		return "none"
	}
	var parts []string
	if o.Has(ShiftNumbers) {
		parts = append(parts, "shift_numbers")
	}
	if o.Has(ReverseOperators) {
		parts = append(parts, "reverse_operators")
	}
	if o.Has(NegateConclusion) {
		parts = append(parts, "negate_conclusion")
	}
	return strings.Join(parts, "|")
}

// ForSeverity maps a severity to its explicit operator set.
//
//	minor    = ShiftNumbers
//	moderate = ShiftNumbers | ReverseOperators
//	major    = all operators
//	legacy   = all operators
func ForSeverity(sev model.Severity) (Operator, error) {
	switch sev {
	case model.SeverityMinor:
		return ShiftNumbers, nil
	case model.SeverityModerate:
		return ShiftNumbers | ReverseOperators, nil
	case model.SeverityMajor, model.SeverityLegacy:
		return AllOperators, nil
	default:
		return 0, eris.Errorf("intervene: no operators for severity %q", sev)
	}
}
