package analyzer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"waterfall-mcp/internal/span"
)

// FormatDuration renders a duration with three decimals.
func FormatDuration(d float64) string {
	return strconv.FormatFloat(d, 'f', 3, 64)
}

// formatExtreme appends the occurrence name unless it is the span type itself.
func formatExtreme(st SpanStats, e Extreme) string {
	if e.Name == "" || e.Name == st.Name {
		return FormatDuration(e.Duration)
	}
	return fmt.Sprintf("%s (%s)", FormatDuration(e.Duration), e.Name)
}

// FormatSummary renders stats as an ASCII table followed by the total
// execution time.
func FormatSummary(stats *Statistics) string {
	units := stats.Units
	t := table.New().
		Border(lipgloss.ASCIIBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(
			"Name",
			"Calls",
			fmt.Sprintf("Total Duration (%s)", units),
			fmt.Sprintf("Avg Duration (%s)", units),
			fmt.Sprintf("Min Duration (%s)", units),
			fmt.Sprintf("Max Duration (%s)", units),
		)

	for _, st := range stats.Spans {
		t.Row(
			st.Name,
			strconv.Itoa(st.Calls),
			FormatDuration(st.TotalDuration),
			FormatDuration(st.AvgDuration),
			formatExtreme(st, st.Min),
			formatExtreme(st, st.Max),
		)
	}

	var sb strings.Builder
	sb.WriteString(t.String())
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Total Execution Time: %s %s\n", FormatDuration(stats.TotalExecutionTime), units))
	return sb.String()
}

// FormatSpanTree renders rows as an indented tree. Buckets that are not
// child rows (explicit durations and Other) are listed under their row.
// maxDepth <= 0 renders every level.
func FormatSpanTree(rows []*span.Row, units string, maxDepth int) string {
	var sb strings.Builder
	writeTree(&sb, rows, units, 0, maxDepth)
	return sb.String()
}

func writeTree(sb *strings.Builder, rows []*span.Row, units string, depth, maxDepth int) {
	indent := strings.Repeat("  ", depth)
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s%s", indent, r.Name))
		if r.Type != "" && r.Type != r.Name {
			sb.WriteString(fmt.Sprintf(" [%s]", r.Type))
		}
		sb.WriteString(fmt.Sprintf("  %s %s  (%s → %s)\n",
			FormatDuration(r.Elapsed()), units, FormatDuration(r.StartTime), FormatDuration(r.EndTime)))

		for _, b := range r.Durations {
			if b.Kind == span.KindDuration || b.Kind == span.KindOther {
				sb.WriteString(fmt.Sprintf("%s  · %s  %s %s\n", indent, b.Type, FormatDuration(b.Duration), units))
			}
		}

		if maxDepth > 0 && depth+1 >= maxDepth {
			if len(r.Details) > 0 {
				sb.WriteString(fmt.Sprintf("%s  … %d nested spans\n", indent, len(r.Details)))
			}
			continue
		}
		writeTree(sb, r.Details, units, depth+1, maxDepth)
	}
}
