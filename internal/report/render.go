package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sells-group/faithcheck/internal/model"
)

var stageNames = [model.StageCount]string{"Stage 0 (early)", "Stage 1 (mid)", "Stage 2 (late)"}

// Render formats the summary as plain text tables. With color false no
// ANSI styling is emitted, which is what log files want.
func Render(s Summary, color bool) string {
	var b strings.Builder

	b.WriteString(stylize("Chain-of-thought faithfulness report", color, lipgloss.Color("33")))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Model: %s", s.Model)
	if s.Provider != "" {
		fmt.Fprintf(&b, " (%s)", s.Provider)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Datasets: %s\n", strings.Join(s.Datasets, ", "))
	if s.Gradient {
		b.WriteString("Mode: gradient\n")
	} else {
		b.WriteString("Mode: legacy (binary)\n")
	}
	b.WriteString("\n")

	st := s.Stats
	fmt.Fprintf(&b, "Questions: %d processed, %d tossed, %d failed\n", st.ProcessedQuestions, st.TossedQuestions, st.FailedQuestions)
	fmt.Fprintf(&b, "Answers: %d scored, %d tossed\n", s.Overall.Count, st.TossedAnswers)
	if st.NoOpInterventions > 0 {
		fmt.Fprintf(&b, "Interventions that left the step unchanged: %d\n", st.NoOpInterventions)
	}
	b.WriteString("\n")

	if s.Gradient {
		b.WriteString(gradientTable(s, color))
		b.WriteString("\n\n")
		b.WriteString(severityTable(s.Overall, color))
	} else {
		b.WriteString(legacyTable(st, color))
	}
	b.WriteString("\n")

	if c := s.Correlation; c != nil {
		value := "n/a"
		if c.Defined() {
			value = fmt.Sprintf("%.3f", c.Value)
		}
		fmt.Fprintf(&b, "\nCorrelation (%s, severity vs deviation, n=%d): %s\n", c.Method, c.N, value)
	}

	u := s.Usage
	fmt.Fprintf(&b, "\nTokens: %d in, %d out over %d calls (est. $%.4f)\n", u.InputTokens, u.OutputTokens, u.Calls, u.Cost)
	return b.String()
}

func gradientTable(s Summary, color bool) string {
	headers := []string{"Scope", "Results", "Change rate"}
	for _, sr := range s.Overall.Severities {
		headers = append(headers, string(sr.Severity))
	}

	row := func(name string, bd Breakdown) []string {
		cells := []string{name, strconv.Itoa(bd.Count), percent(bd.Rate)}
		for _, sr := range bd.Severities {
			cells = append(cells, fmt.Sprintf("%s (%d)", percent(sr.Rate), sr.Count))
		}
		return cells
	}

	rows := [][]string{row("Overall", s.Overall)}
	for i, bd := range s.Stages {
		rows = append(rows, row(stageNames[i], bd))
	}
	return newTable(headers, rows, color)
}

func severityTable(bd Breakdown, color bool) string {
	rows := make([][]string, 0, len(bd.Severities))
	for _, sr := range bd.Severities {
		rows = append(rows, []string{
			string(sr.Severity),
			strconv.Itoa(sr.Count),
			strconv.Itoa(sr.Changed),
			percent(sr.Rate),
			fmt.Sprintf("%.3f", sr.MeanDeviation),
		})
	}
	return newTable([]string{"Severity", "Results", "Changed", "Change rate", "Mean deviation"}, rows, color)
}

func legacyTable(st model.RunStatistics, color bool) string {
	rows := make([][]string, 0, model.StageCount+1)
	for i := range model.StageCount {
		same, diff := st.SameStages[i], st.DifferentStages[i]
		rows = append(rows, []string{stageNames[i], strconv.Itoa(same), strconv.Itoa(diff), percent(fraction(diff, same+diff))})
	}
	rows = append(rows, []string{
		"Total",
		strconv.Itoa(st.SameAnswers),
		strconv.Itoa(st.DifferentAnswers),
		percent(fraction(st.DifferentAnswers, st.SameAnswers+st.DifferentAnswers)),
	})
	return newTable([]string{"Stage", "Same", "Different", "Changed"}, rows, color)
}

func newTable(headers []string, rows [][]string, color bool) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	border := lipgloss.NewStyle()
	if color {
		header = header.Foreground(lipgloss.Color("252"))
		border = border.Foreground(lipgloss.Color("240"))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	return t.String()
}

func stylize(text string, color bool, c lipgloss.Color) string {
	if !color {
		return text
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render(text)
}

func percent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

func fraction(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
