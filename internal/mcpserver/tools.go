package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"waterfall-mcp/internal/analyzer"
)

const (
	rule         = "═══════════════════════════════════════════════════\n\n"
	errNotLoaded = "Call log not loaded. Use load_calllog tool first"
)

func filePathArg() mcp.ToolOption {
	return mcp.WithString("file_path",
		mcp.Required(),
		mcp.Description("Path to the loaded call log file"),
	)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("load_calllog",
		mcp.WithDescription("Load a recorded call log (.jsonl, or .zip containing calls.jsonl) and build its waterfall"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path to the call log file"),
		),
	), s.handleLoad)

	s.mcp.AddTool(mcp.NewTool("get_summary",
		mcp.WithDescription("Get the per-span statistics table of the waterfall: calls, total, average, min and max duration of every span type."),
		filePathArg(),
	), s.handleSummary)

	s.mcp.AddTool(mcp.NewTool("get_statistics",
		mcp.WithDescription("Get overall statistics of the call log and the span types consuming the most time."),
		filePathArg(),
		mcp.WithNumber("top_n",
			mcp.Description("Number of span types to rank (default: configured top_n)"),
		),
	), s.handleStatistics)

	s.mcp.AddTool(mcp.NewTool("find_slowest_spans",
		mcp.WithDescription("Find the longest individual span occurrences. This is the quickest way to locate latency bottlenecks."),
		filePathArg(),
		mcp.WithNumber("top_n",
			mcp.Description("Number of spans to return (default: configured top_n)"),
		),
	), s.handleSlowest)

	s.mcp.AddTool(mcp.NewTool("view_span_tree",
		mcp.WithDescription("View the waterfall as an indented span tree with start and end times relative to the first call."),
		filePathArg(),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum nesting depth to render (default: unlimited)"),
		),
	), s.handleTree)

	s.mcp.AddTool(mcp.NewTool("list_events",
		mcp.WithDescription("List point-in-time events recorded in the call log."),
		filePathArg(),
	), s.handleEvents)

	s.mcp.AddTool(mcp.NewTool("detect_issues",
		mcp.WithDescription("Automatically detect dominant spans, unattributed time and recording errors such as unterminated spans."),
		filePathArg(),
	), s.handleIssues)
}

func (s *Server) cached(request mcp.CallToolRequest) (*loaded, *mcp.CallToolResult) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	l, ok := s.lookup(filePath)
	if !ok {
		return nil, mcp.NewToolResultError(errNotLoaded)
	}
	return l, nil
}

func (s *Server) topN(request mcp.CallToolRequest) int {
	return int(request.GetFloat("top_n", float64(s.cfg.Report.TopN)))
}

func (s *Server) handleLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cl, gui, err := s.Load(filePath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load call log: %v", err)), nil
	}

	result := fmt.Sprintf(`Call log loaded successfully!

File: %s
Calls: %d (%d starts, %d ends, %d events)
Units: %s
Total Execution Time: %s %s
Span Types: %d
Errors: %d

Use other tools to analyze this waterfall.
`,
		filePath,
		cl.Stats.NumCalls, cl.Stats.NumStarts, cl.Stats.NumEnds, cl.Stats.NumEvents,
		gui.Units,
		analyzer.FormatDuration(gui.Stats.TotalExecutionTime), gui.Units,
		len(gui.Stats.Spans),
		len(gui.Errors),
	)

	return mcp.NewToolResultText(result), nil
}

func (s *Server) handleSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	l, errResult := s.cached(request)
	if errResult != nil {
		return errResult, nil
	}
	return mcp.NewToolResultText(l.gui.Summary), nil
}

func (s *Server) handleStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	l, errResult := s.cached(request)
	if errResult != nil {
		return errResult, nil
	}
	stats := l.gui.Stats

	var sb strings.Builder
	sb.WriteString("📊 WATERFALL STATISTICS\n")
	sb.WriteString(rule)

	sb.WriteString(fmt.Sprintf("Total Execution Time: %s %s\n", analyzer.FormatDuration(stats.TotalExecutionTime), stats.Units))
	sb.WriteString(fmt.Sprintf("Top-level Spans: %d\n", len(l.gui.Rows)))
	sb.WriteString(fmt.Sprintf("Span Types: %d\n", len(stats.Spans)))
	sb.WriteString(fmt.Sprintf("Events: %d\n", len(l.gui.Events)))
	sb.WriteString(fmt.Sprintf("Errors: %d\n\n", len(l.gui.Errors)))

	sb.WriteString("Time by Span Type:\n")
	hotspots := analyzer.FindTypeHotspots(stats, s.topN(request))
	if len(hotspots) == 0 {
		sb.WriteString("  No spans recorded.\n")
	}
	for i, hs := range hotspots {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s %s (%.2f%%) over %d calls\n",
			i+1, hs.Name, analyzer.FormatDuration(hs.TotalDuration), stats.Units, hs.Percentage, hs.Calls))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleSlowest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	l, errResult := s.cached(request)
	if errResult != nil {
		return errResult, nil
	}

	slowest := analyzer.FindSlowestSpans(l.gui.Stats, s.topN(request))

	var sb strings.Builder
	sb.WriteString("🐢 SLOWEST SPANS (Longest Individual Occurrences)\n")
	sb.WriteString(rule)

	if len(slowest) == 0 {
		sb.WriteString("No spans found.\n")
	}
	for i, sp := range slowest {
		sb.WriteString(analyzer.FormatSlowSpan(sp, i+1, l.gui.Units))
		sb.WriteString("\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	l, errResult := s.cached(request)
	if errResult != nil {
		return errResult, nil
	}

	var sb strings.Builder
	sb.WriteString("🌊 SPAN TREE\n")
	sb.WriteString(rule)
	if len(l.gui.Rows) == 0 {
		sb.WriteString("No spans recorded.\n")
	}
	sb.WriteString(analyzer.FormatSpanTree(l.gui.Rows, l.gui.Units, request.GetInt("max_depth", 0)))

	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	l, errResult := s.cached(request)
	if errResult != nil {
		return errResult, nil
	}

	var sb strings.Builder
	sb.WriteString("📍 EVENTS\n")
	sb.WriteString(rule)

	if len(l.gui.Events) == 0 {
		sb.WriteString("No events recorded.\n")
	}
	for _, ev := range l.gui.Events {
		sb.WriteString(fmt.Sprintf("%s %s  %s", analyzer.FormatDuration(ev.Time), l.gui.Units, ev.Name))
		if len(ev.Data) > 0 {
			sb.WriteString(fmt.Sprintf("  %v", ev.Data))
		}
		sb.WriteString("\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	l, errResult := s.cached(request)
	if errResult != nil {
		return errResult, nil
	}

	issues := analyzer.DetectIssues(l.gui.Stats, l.gui.Problems)

	var sb strings.Builder
	sb.WriteString("⚠️  AUTOMATED ISSUE DETECTION\n")
	sb.WriteString(rule)

	if len(issues) == 0 {
		sb.WriteString("✅ No significant issues detected!\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	counts := make(map[string]int)
	for _, issue := range issues {
		counts[issue.Severity]++
		sb.WriteString(fmt.Sprintf("[%s] %s", issue.Severity, issue.Category))
		if issue.Span != "" {
			sb.WriteString(fmt.Sprintf(": %s", issue.Span))
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("   %s\n", issue.Description))
		if issue.Impact > 0 {
			sb.WriteString(fmt.Sprintf("   Impact: %.2f%% of execution time\n", issue.Impact))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("📊 SUMMARY:\n")
	for _, sev := range []string{"Critical", "High", "Medium", "Low"} {
		if counts[sev] > 0 {
			sb.WriteString(fmt.Sprintf("  %s: %d\n", sev, counts[sev]))
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}
