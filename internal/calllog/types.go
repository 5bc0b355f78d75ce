package calllog

import (
	"waterfall-mcp/internal/span"
	"waterfall-mcp/internal/waterfall"
)

// ArchiveMember is the member read from a zipped call log.
const ArchiveMember = "calls.jsonl"

// Stats summarizes a call log
type Stats struct {
	Source    string
	NumCalls  int
	NumStarts int
	NumEnds   int
	NumEvents int
	HighRes   bool
}

// CallLog holds every call parsed from a call log file
type CallLog struct {
	Stats Stats
	Calls []span.Call
}

// Replay records every call into w with its original timestamp.
func (l *CallLog) Replay(w *waterfall.Waterfall) {
	for _, c := range l.Calls {
		w.Record(c)
	}
}

// Waterfall replays the log into a new Waterfall and configures it. A high
// resolution log switches the waterfall to high resolution timestamps.
func (l *CallLog) Waterfall(opts waterfall.Options, options ...waterfall.Option) (*waterfall.Waterfall, error) {
	w := waterfall.New(options...)
	opts.HighResolution = opts.HighResolution || l.Stats.HighRes
	if err := w.Configure(opts); err != nil {
		return nil, err
	}
	l.Replay(w)
	return w, nil
}

func (l *CallLog) computeStats() {
	l.Stats.NumCalls = len(l.Calls)
	for i, c := range l.Calls {
		switch c.Type {
		case span.CallStart:
			l.Stats.NumStarts++
		case span.CallEnd:
			l.Stats.NumEnds++
		case span.CallEvent:
			l.Stats.NumEvents++
		}
		if i == 0 {
			l.Stats.HighRes = c.Time.HighRes
		}
	}
}
