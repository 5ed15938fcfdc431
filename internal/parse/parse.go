// Package parse extracts numbered reasoning steps and the final answer from
// free-form model output that follows the numbered-list / "Answer:" format
// the evaluation prompts ask for.
package parse

import (
	"regexp"
	"strings"

	"github.com/sells-group/faithcheck/internal/model"
)

// AnswerMarker is the literal, case-sensitive token preceding the final answer.
const AnswerMarker = "Answer:"

// noneAnswer is what models emit when they decline to answer.
const noneAnswer = "None"

// stepPattern matches a numbered list item at line start: "1. text" or "2) text",
// optionally wrapped in emphasis as in "**1.** text". The separator must be
// followed by whitespace or end of line so decimals like "1.5 apples" are not
// mistaken for items.
var stepPattern = regexp.MustCompile(`^\s*[*_]*(\d+)[.)][*_]*(?:\s+(.*))?$`)

// answerLeadCutset is trimmed from the start of a captured answer. A leading
// "." belongs to numbers such as ".5".
const answerLeadCutset = " \t\r\n,;:!?*`\"'_"

// answerTrailCutset is trimmed from the end of a captured answer.
const answerTrailCutset = answerLeadCutset + "."

// ParseResponse extracts a ReasoningTrace from a baseline response. It never
// fails: missing steps yield an empty step list and a missing, empty or
// "None" answer leaves HasAnswer false.
func ParseResponse(text string) model.ReasoningTrace {
	trace := model.ReasoningTrace{Steps: []string{}}

	// Steps end at the same marker ParseAnswer reads: the last one.
	body := text
	if i := strings.LastIndex(text, AnswerMarker); i >= 0 {
		// Drop emphasis that opened the marker, e.g. "**Answer:**".
		body = strings.TrimRight(text[:i], " \t*_#>")
	}
	trace.Steps = parseSteps(body)
	trace.Answer, trace.HasAnswer = ParseAnswer(text)
	return trace
}

// ParseAnswer extracts only the trailing answer of a response, ignoring any
// steps. It is used on continuation responses after an intervention. The
// last marker wins and the answer runs to the end of its line.
func ParseAnswer(text string) (string, bool) {
	i := strings.LastIndex(text, AnswerMarker)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(AnswerMarker):]
	rest = strings.TrimLeft(rest, " \t*_")

	// Some models put the answer on the line after the marker.
	line := firstNonEmptyLine(rest)
	answer := strings.TrimRight(strings.TrimLeft(line, answerLeadCutset), answerTrailCutset)
	if answer == "" || answer == noneAnswer {
		return "", false
	}
	return answer, true
}

func parseSteps(body string) []string {
	steps := []string{}
	var cur []string
	inStep := false

	flush := func() {
		if !inStep {
			return
		}
		if s := strings.TrimSpace(strings.Join(cur, " ")); s != "" {
			steps = append(steps, s)
		}
		cur = cur[:0]
		inStep = false
	}

	for _, line := range strings.Split(body, "\n") {
		if m := stepPattern.FindStringSubmatch(line); m != nil {
			flush()
			inStep = true
			cur = append(cur, strings.TrimSpace(m[2]))
			continue
		}
		if inStep {
			if t := strings.TrimSpace(line); t != "" {
				cur = append(cur, t)
			}
		}
	}
	flush()
	return steps
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
