package analyzer

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterfall-mcp/internal/span"
)

func scenarioStats(t *testing.T) *Statistics {
	t.Helper()
	rows := rowsFor(t,
		call{typ: span.CallStart, key: "/r", ms: 0},
		call{typ: span.CallStart, key: "/r/a", ms: 0},
		call{typ: span.CallEnd, key: "/r/a", ms: 5},
		call{typ: span.CallEnd, key: "/r", ms: 10},
	)
	stats, errs := ComputeStatistics(rows, 10, span.UnitsMillis, Options{})
	require.Empty(t, errs)
	return stats
}

func TestFormatSummary(t *testing.T) {
	out := FormatSummary(scenarioStats(t))

	assert.Contains(t, out, "Name")
	assert.Contains(t, out, "Calls")
	assert.Contains(t, out, "Total Duration (ms)")
	assert.Contains(t, out, "Max Duration (ms)")
	assert.Contains(t, out, "10.000")
	// Other is attributed to the row that produced it.
	assert.Contains(t, out, "5.000 (r)")
	assert.True(t, strings.HasSuffix(out, "Total Execution Time: 10.000 ms\n"))

	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, " r ") {
			assert.NotContains(t, line, "(r)", "extremes named after the type are not annotated")
		}
	}
}

func TestFormatSummary_Empty(t *testing.T) {
	out := FormatSummary(&Statistics{Units: span.UnitsNanos})
	assert.Contains(t, out, "Total Duration (ns)")
	assert.Contains(t, out, "Total Execution Time: 0.000 ns")
}

func TestFindSlowestSpans(t *testing.T) {
	stats := scenarioStats(t)

	slowest := FindSlowestSpans(stats, 2)
	require.Len(t, slowest, 2)
	assert.Equal(t, "r", slowest[0].Name)
	assert.Equal(t, 100.0, slowest[0].Percentage)
	assert.Equal(t, 5.0, slowest[1].Duration)

	assert.Len(t, FindSlowestSpans(stats, 0), 3)

	formatted := FormatSlowSpan(SlowSpan{Name: "r", Type: span.Other, Duration: 5, Percentage: 50}, 1, "ms")
	assert.Contains(t, formatted, "#1: r [Other]")
	assert.Contains(t, formatted, "5.000 ms (50.00%)")
}

func TestFindTypeHotspots(t *testing.T) {
	hotspots := FindTypeHotspots(scenarioStats(t), 1)
	require.Len(t, hotspots, 1)
	assert.Equal(t, "r", hotspots[0].Name)
	assert.Equal(t, 1, hotspots[0].Calls)
}

func TestDetectIssues(t *testing.T) {
	problems := []error{
		fmt.Errorf("wrapped: %w", &span.KeyError{Kind: span.ErrUnterminatedSpan, Key: "p"}),
		&span.KeyError{Kind: span.ErrUnmatchedEnd, Key: "ghost"},
		&FilterError{Expr: "x", Err: errors.New("boom")},
	}

	issues := DetectIssues(scenarioStats(t), problems)

	require.NotEmpty(t, issues)
	assert.Equal(t, "Critical", issues[0].Severity)
	assert.Equal(t, "r", issues[0].Span)

	byCategory := make(map[string]Issue)
	for _, is := range issues {
		byCategory[is.Category] = is
	}
	assert.Equal(t, "p", byCategory["Unterminated Span"].Span)
	assert.Equal(t, "High", byCategory["Unterminated Span"].Severity)
	assert.Equal(t, "ghost", byCategory["Unmatched End"].Span)
	assert.Contains(t, byCategory, "Filter Error")
	assert.Contains(t, byCategory, "Unattributed Time")
}

func TestFormatSpanTree(t *testing.T) {
	rows := rowsFor(t,
		call{typ: span.CallStart, key: "/r", ms: 0},
		call{typ: span.CallStart, key: "/r/a", ms: 0},
		call{typ: span.CallEnd, key: "/r/a", ms: 5},
		call{typ: span.CallEnd, key: "/r", ms: 10},
	)

	out := FormatSpanTree(rows, span.UnitsMillis, 0)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "r  10.000 ms"))
	assert.Contains(t, lines[1], "· Other  5.000 ms")
	assert.True(t, strings.HasPrefix(lines[2], "  a  5.000 ms"))

	shallow := FormatSpanTree(rows, span.UnitsMillis, 1)
	assert.Contains(t, shallow, "… 1 nested spans")
	assert.NotContains(t, shallow, "  a  ")
}
