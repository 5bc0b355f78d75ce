package waterfall

import (
	"waterfall-mcp/internal/analyzer"
	"waterfall-mcp/internal/span"
)

// EventRow is a recorded event with its time relative to the waterfall origin.
type EventRow struct {
	Name string         `json:"name"`
	Time float64        `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// GUI is the finalized waterfall handed to renderers.
type GUI struct {
	Headers []string             `json:"headers"`
	Rows    []*span.Row          `json:"rows"`
	Units   string               `json:"units"`
	Events  []EventRow           `json:"events"`
	Summary string               `json:"summary"`
	Stats   *analyzer.Statistics `json:"stats"`
	Errors  []string             `json:"errors,omitempty"`

	AbsoluteStartTime span.Timestamp `json:"absoluteStartTime"`
	AbsoluteEndTime   span.Timestamp `json:"absoluteEndTime"`

	// Problems holds the non-fatal errors behind Errors.
	Problems []error `json:"-"`
}

// GUI finalizes the waterfall on first use and returns the cached result
// afterwards. Once finalized, recording methods log an error and do nothing.
func (w *Waterfall) GUI() *GUI {
	if w.gui != nil {
		return w.gui
	}

	res := span.Reconcile(w.calls, w.logger)
	start, end := w.bounds()
	units := w.units()

	rows := span.Render(res.Root, start)
	stats, filterErrs := analyzer.ComputeStatistics(rows, end.Sub(start), units, analyzer.Options{
		Filter:       w.filter,
		BucketFilter: w.bucketFilter,
		Logger:       w.logger,
	})

	gui := &GUI{
		Headers:           span.Headers(rows),
		Rows:              rows,
		Units:             units,
		Events:            make([]EventRow, 0, len(res.Events)),
		Stats:             stats,
		AbsoluteStartTime: start,
		AbsoluteEndTime:   end,
		Problems:          append(res.Errors, filterErrs...),
	}
	for _, ev := range res.Events {
		gui.Events = append(gui.Events, EventRow{Name: ev.Name, Time: ev.Time.Sub(start), Data: ev.Data})
	}
	for _, err := range gui.Problems {
		gui.Errors = append(gui.Errors, err.Error())
	}
	gui.Summary = analyzer.FormatSummary(stats)

	w.gui = gui
	return gui
}

// Summary returns the statistics table of the finalized waterfall.
func (w *Waterfall) Summary() string {
	return w.GUI().Summary
}

// bounds returns the earliest recorded start (or earliest call when nothing
// was started) and the latest recorded call.
func (w *Waterfall) bounds() (start, end span.Timestamp) {
	var first, anyFirst, last *span.Timestamp
	for i := range w.calls {
		t := &w.calls[i].Time
		if anyFirst == nil || t.Before(*anyFirst) {
			anyFirst = t
		}
		if w.calls[i].Type == span.CallStart && (first == nil || t.Before(*first)) {
			first = t
		}
		if last == nil || last.Before(*t) {
			last = t
		}
	}
	if first == nil {
		first = anyFirst
	}
	if first == nil {
		zero := w.clock.Now()
		return zero, zero
	}
	return *first, *last
}

func (w *Waterfall) units() string {
	if len(w.calls) > 0 {
		return w.calls[0].Time.Units()
	}
	return w.clock.Units()
}
