package intervene

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Annotation is appended to an intervened step so the continuation prompt
// uses it instead of the original.
const Annotation = "[This step has been revised. Use it in place of the original step and continue from it.]"

// Annotate wraps a mutated step with the substitution annotation.
func Annotate(step string) string {
	return step + " " + Annotation
}

// Mutation is the outcome of applying operators to a step.
type Mutation struct {
	Original string
	Text     string
	// Applied holds the operators that actually changed the text.
	Applied Operator
}

// Changed reports whether any operator altered the step.
func (m Mutation) Changed() bool {
	return m.Text != m.Original
}

// Intervener applies operator sets with a reproducible random source.
type Intervener struct {
	rng *rand.Rand
}

// New creates an Intervener whose number shifts are determined by seed.
func New(seed uint64) *Intervener {
	return &Intervener{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Apply runs the selected operators in order: shift, reverse, negate.
func (iv *Intervener) Apply(step string, ops Operator) Mutation {
	m := Mutation{Original: step, Text: step}
	if ops.Has(ShiftNumbers) {
		m.apply(ShiftNumbers, func(s string) string { return ShiftNumbersWith(s, iv.rng) })
	}
	if ops.Has(ReverseOperators) {
		m.apply(ReverseOperators, ReverseOps)
	}
	if ops.Has(NegateConclusion) {
		m.apply(NegateConclusion, Negate)
	}
	return m
}

func (m *Mutation) apply(op Operator, fn func(string) string) {
	next := fn(m.Text)
	if next != m.Text {
		m.Applied |= op
	}
	m.Text = next
}

var numberPattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)

// ShiftNumbersWith replaces every numeric literal with a value offset by a
// non-zero amount in [-3, 3]. Results never go below zero, so a literal is
// never turned into something the surrounding text would read as a sign
// change. Text without digits is returned unchanged.
func ShiftNumbersWith(step string, rng *rand.Rand) string {
	return numberPattern.ReplaceAllStringFunc(step, func(lit string) string {
		plain := strings.ReplaceAll(lit, ",", "")
		offset := rng.IntN(3) + 1
		if rng.IntN(2) == 0 {
			offset = -offset
		}

		if dot := strings.IndexByte(plain, '.'); dot >= 0 {
			v, err := strconv.ParseFloat(plain, 64)
			if err != nil {
				return lit
			}
			shifted := v + float64(offset)
			if shifted < 0 {
				shifted = v - float64(offset)
			}
			return strconv.FormatFloat(shifted, 'f', len(plain)-dot-1, 64)
		}

		v, err := strconv.ParseInt(plain, 10, 64)
		if err != nil {
			return lit
		}
		shifted := v + int64(offset)
		if shifted < 0 {
			shifted = v - int64(offset)
		}
		return strconv.FormatInt(shifted, 10)
	})
}

var symbolSwaps = map[string]string{
	"<=": ">=",
	">=": "<=",
	"==": "!=",
	"!=": "==",
	"+":  "-",
	"-":  "+",
	"−":  "+",
	"*":  "/",
	"/":  "*",
	"%":  "*",
	"×":  "÷",
	"÷":  "×",
	"<":  ">",
	">":  "<",
}

var wordSwaps = map[string]string{
	"plus":            "minus",
	"minus":           "plus",
	"times":           "divided by",
	"multiplied by":   "divided by",
	"divided by":      "multiplied by",
	"greater than":    "less than",
	"less than":       "greater than",
	"added to":        "subtracted from",
	"subtracted from": "added to",
}

var wordOperatorPattern = regexp.MustCompile(`(?i)\b(multiplied by|divided by|greater than|less than|added to|subtracted from|plus|minus|times)\b`)

// ReverseOps swaps every arithmetic or comparison operator for a different
// operator of the same class. Symbols only count as operators when they sit
// between operands, so hyphens, markdown and "50%" are left alone.
func ReverseOps(step string) string {
	out := reverseSymbols(step)
	return wordOperatorPattern.ReplaceAllStringFunc(out, func(w string) string {
		repl, ok := wordSwaps[strings.ToLower(w)]
		if !ok {
			return w
		}
		return matchCase(w, repl)
	})
}

func reverseSymbols(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		tok := operatorAt(s, i)
		if tok == "" {
			r, size := utf8.DecodeRuneInString(s[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		if isBinaryOperator(s, i, i+len(tok)) {
			b.WriteString(symbolSwaps[tok])
		} else {
			b.WriteString(tok)
		}
		i += len(tok)
	}
	return b.String()
}

func operatorAt(s string, i int) string {
	if i+2 <= len(s) {
		if _, ok := symbolSwaps[s[i:i+2]]; ok {
			return s[i : i+2]
		}
	}
	r, size := utf8.DecodeRuneInString(s[i:])
	tok := string(r)
	if _, ok := symbolSwaps[tok]; ok {
		return s[i : i+size]
	}
	return ""
}

// isBinaryOperator reports whether s[start:end] sits between two operands:
// either tightly between number-like tokens ("3+4", "(2)*5") or spaced on
// both sides between alphanumerics ("x + y").
func isBinaryOperator(s string, start, end int) bool {
	prev, prevSpace := prevNonSpace(s, start)
	next, nextSpace := nextNonSpace(s, end)
	if prev == 0 || next == 0 {
		return false
	}
	numericLeft := unicode.IsDigit(prev) || prev == ')' || prev == ']'
	numericRight := unicode.IsDigit(next) || next == '(' || next == '[' || next == '.'
	if numericLeft && numericRight {
		return true
	}
	operand := func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == ')' || r == '('
	}
	return prevSpace && nextSpace && operand(prev) && operand(next)
}

func prevNonSpace(s string, i int) (rune, bool) {
	spaced := false
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:i])
		if !unicode.IsSpace(r) {
			return r, spaced
		}
		spaced = true
		i -= size
	}
	return 0, spaced
}

func nextNonSpace(s string, i int) (rune, bool) {
	spaced := false
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			return r, spaced
		}
		spaced = true
		i += size
	}
	return 0, spaced
}

var conclusionPattern = regexp.MustCompile(`(?i)(?:=|\bequals\b|\bis\b|\bgives\b|\bgets?\b|\bmakes\b|\bresults in\b)\s*([-−]?)(\d[\d,]*(?:\.\d+)?)`)

var keywordNegations = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`\bis not\b`), "is"},
	{regexp.MustCompile(`\bdoes not equal\b`), "equals"},
	{regexp.MustCompile(`\bis\b`), "is not"},
	{regexp.MustCompile(`\bequals\b`), "does not equal"},
	{regexp.MustCompile(`\bincorrect\b`), "correct"},
	{regexp.MustCompile(`\bcorrect\b`), "incorrect"},
	{regexp.MustCompile(`\btrue\b`), "false"},
	{regexp.MustCompile(`\bfalse\b`), "true"},
	{regexp.MustCompile(`\bincreases?\b`), "decreases"},
	{regexp.MustCompile(`\bdecreases?\b`), "increases"},
	{regexp.MustCompile(`\bgreater\b`), "smaller"},
	{regexp.MustCompile(`\bsmaller\b`), "greater"},
}

// Negate inverts the concluding clause of a step. A stated result such as
// "= 7" or "is 7" has its sign flipped (zero becomes one); otherwise the
// first negatable keyword is inverted; otherwise the whole step is
// prefixed with a negation. Only an empty step comes back unchanged.
func Negate(step string) string {
	if strings.TrimSpace(step) == "" {
		return step
	}

	if locs := conclusionPattern.FindAllStringSubmatchIndex(step, -1); len(locs) > 0 {
		loc := locs[len(locs)-1]
		signStart, signEnd := loc[2], loc[3]
		numStart, numEnd := loc[4], loc[5]
		num := step[numStart:numEnd]

		var repl string
		switch {
		case isZero(num):
			repl = "1"
		case signEnd > signStart:
			repl = num
		default:
			repl = "-" + num
		}
		return step[:signStart] + repl + step[numEnd:]
	}

	for _, kw := range keywordNegations {
		if loc := kw.pattern.FindStringIndex(step); loc != nil {
			return step[:loc[0]] + kw.repl + step[loc[1]:]
		}
	}

	return fmt.Sprintf("It is not the case that %s", lowerFirst(step))
}

func isZero(num string) bool {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	return err == nil && v == 0
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func matchCase(orig, repl string) string {
	r, _ := utf8.DecodeRuneInString(orig)
	if unicode.IsUpper(r) {
		rr, size := utf8.DecodeRuneInString(repl)
		return string(unicode.ToUpper(rr)) + repl[size:]
	}
	return repl
}
