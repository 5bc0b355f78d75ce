package analyzer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"waterfall-mcp/internal/span"
)

// SlowSpan is a single occurrence ranked by duration
type SlowSpan struct {
	Name       string
	Type       string
	Duration   float64
	StartTime  float64
	Percentage float64 // Percentage of total execution time
}

// TypeHotspot is a span type ranked by the time spent in it
type TypeHotspot struct {
	Name          string
	Calls         int
	TotalDuration float64
	Percentage    float64
}

// FindSlowestSpans returns the topN longest occurrences across all span types.
// Returns every occurrence when topN <= 0.
func FindSlowestSpans(stats *Statistics, topN int) []SlowSpan {
	var spans []SlowSpan
	for _, st := range stats.Spans {
		for _, o := range st.Occurrences {
			spans = append(spans, SlowSpan{
				Name:       o.Name,
				Type:       st.Name,
				Duration:   o.Duration,
				StartTime:  o.StartTime,
				Percentage: percentage(o.Duration, stats.TotalExecutionTime),
			})
		}
	}

	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Duration > spans[j].Duration
	})

	if topN > 0 && topN < len(spans) {
		return spans[:topN]
	}
	return spans
}

// FindTypeHotspots ranks span types by total duration.
func FindTypeHotspots(stats *Statistics, topN int) []TypeHotspot {
	hotspots := make([]TypeHotspot, 0, len(stats.Spans))
	for _, st := range stats.Spans {
		hotspots = append(hotspots, TypeHotspot{
			Name:          st.Name,
			Calls:         st.Calls,
			TotalDuration: st.TotalDuration,
			Percentage:    percentage(st.TotalDuration, stats.TotalExecutionTime),
		})
	}

	sort.SliceStable(hotspots, func(i, j int) bool {
		return hotspots[i].TotalDuration > hotspots[j].TotalDuration
	})

	if topN > 0 && topN < len(hotspots) {
		return hotspots[:topN]
	}
	return hotspots
}

// FormatSlowSpan formats a slow span for display
func FormatSlowSpan(s SlowSpan, rank int, units string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("#%d: %s", rank, s.Name))
	if s.Type != s.Name {
		sb.WriteString(fmt.Sprintf(" [%s]", s.Type))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("    Duration: %s %s (%.2f%%)\n", FormatDuration(s.Duration), units, s.Percentage))
	sb.WriteString(fmt.Sprintf("    Started at: %s %s\n", FormatDuration(s.StartTime), units))
	return sb.String()
}

// Issue is a problem found in a waterfall
type Issue struct {
	Severity    string // "Critical", "High", "Medium", "Low"
	Category    string // e.g. "Dominant Span", "Unterminated Span"
	Description string
	Span        string
	Impact      float64 // % of total execution time
}

// DetectIssues flags span types dominating the execution time and the
// non-fatal problems reported while building the waterfall.
func DetectIssues(stats *Statistics, problems []error) []Issue {
	issues := []Issue{}

	for _, hs := range FindTypeHotspots(stats, 0) {
		if hs.Name == span.Other || hs.Name == span.ElapsedTime {
			continue
		}
		switch {
		case hs.Percentage > 50.0:
			issues = append(issues, Issue{
				Severity:    "Critical",
				Category:    "Dominant Span",
				Description: fmt.Sprintf("Span type accounts for %.2f%% of total execution time over %d calls", hs.Percentage, hs.Calls),
				Span:        hs.Name,
				Impact:      hs.Percentage,
			})
		case hs.Percentage > 20.0:
			issues = append(issues, Issue{
				Severity:    "High",
				Category:    "Dominant Span",
				Description: fmt.Sprintf("Span type accounts for %.2f%% of total execution time over %d calls", hs.Percentage, hs.Calls),
				Span:        hs.Name,
				Impact:      hs.Percentage,
			})
		}
	}

	if st, ok := stats.Lookup(span.Other); ok {
		if pct := percentage(st.TotalDuration, stats.TotalExecutionTime); pct > 30.0 {
			issues = append(issues, Issue{
				Severity:    "Medium",
				Category:    "Unattributed Time",
				Description: fmt.Sprintf("%.2f%% of total execution time is not covered by any child span or duration bucket", pct),
				Span:        span.Other,
				Impact:      pct,
			})
		}
	}

	for _, err := range problems {
		issue := Issue{Severity: "Low", Category: "Recording Error", Description: err.Error()}
		var keyErr *span.KeyError
		if errors.As(err, &keyErr) {
			issue.Span = keyErr.Key
			switch {
			case errors.Is(err, span.ErrUnterminatedSpan):
				issue.Severity = "High"
				issue.Category = "Unterminated Span"
			case errors.Is(err, span.ErrUnmatchedEnd):
				issue.Severity = "Medium"
				issue.Category = "Unmatched End"
			case errors.Is(err, span.ErrInvalidProfileKey):
				issue.Category = "Invalid Key"
			}
		} else if errors.Is(err, ErrFilterEvaluation) {
			issue.Category = "Filter Error"
		}
		issues = append(issues, issue)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return severityRank(issues[i].Severity) < severityRank(issues[j].Severity)
	})

	return issues
}

func severityRank(s string) int {
	switch s {
	case "Critical":
		return 0
	case "High":
		return 1
	case "Medium":
		return 2
	default:
		return 3
	}
}

func percentage(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return (part / total) * 100.0
}
