package analyzer

import (
	"sort"

	"github.com/rs/zerolog"

	"waterfall-mcp/internal/span"
)

// Occurrence is a single data point of a span type.
type Occurrence struct {
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Duration  float64        `json:"duration"`
	StartTime float64        `json:"startTime"`
	EndTime   float64        `json:"endTime"`
	Data      map[string]any `json:"-"`
}

// Extreme names the occurrence that produced a minimum or maximum.
type Extreme struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
}

// SpanStats contains the aggregate latency of one span type
type SpanStats struct {
	Name          string       `json:"name"`
	Calls         int          `json:"calls"`
	Occurrences   []Occurrence `json:"occurrences"`
	TotalDuration float64      `json:"totalDuration"`
	AvgDuration   float64      `json:"avgDuration"`
	Min           Extreme      `json:"min"`
	Max           Extreme      `json:"max"`
}

// Statistics contains per-type statistics for a whole waterfall
type Statistics struct {
	Spans              []SpanStats `json:"spans"`
	TotalExecutionTime float64     `json:"totalExecutionTime"`
	Units              string      `json:"units"`
}

// Options controls which data points reach the statistics.
type Options struct {
	// Filter is evaluated for every occurrence; an explicit false drops it.
	Filter *Filter
	// BucketFilter is evaluated for every finished span type.
	BucketFilter *Filter
	Logger       zerolog.Logger
}

// Lookup returns the statistics of a span type.
func (s *Statistics) Lookup(name string) (SpanStats, bool) {
	for _, st := range s.Spans {
		if st.Name == name {
			return st, true
		}
	}
	return SpanStats{}, false
}

// ComputeStatistics buckets every row, and every explicit or "Other" duration
// bucket of a row, by type and aggregates their durations. Filter evaluation
// failures are logged, returned, and never exclude a data point.
// Spans are sorted by total duration (descending).
func ComputeStatistics(rows []*span.Row, totalTime float64, units string, opts Options) (*Statistics, []error) {
	c := &collector{
		opts:    opts,
		buckets: make(map[string]*SpanStats),
	}
	c.walk(rows)

	stats := &Statistics{
		TotalExecutionTime: totalTime,
		Units:              units,
		Spans:              make([]SpanStats, 0, len(c.order)),
	}
	for _, name := range c.order {
		st := c.buckets[name]
		finish(st)
		if !c.keepBucket(st) {
			continue
		}
		stats.Spans = append(stats.Spans, *st)
	}

	sort.SliceStable(stats.Spans, func(i, j int) bool {
		return stats.Spans[i].TotalDuration > stats.Spans[j].TotalDuration
	})

	return stats, c.errs
}

type collector struct {
	opts    Options
	buckets map[string]*SpanStats
	order   []string
	errs    []error
}

func (c *collector) walk(rows []*span.Row) {
	for _, r := range rows {
		c.add(Occurrence{
			Name:      r.Name,
			Type:      r.TypeName(),
			Duration:  r.Elapsed(),
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			Data:      r.Data,
		})

		for _, b := range r.Durations {
			// Elapsed Time mirrors the row itself and child buckets mirror
			// rows that are counted on their own.
			if b.Kind != span.KindDuration && b.Kind != span.KindOther {
				continue
			}
			c.add(Occurrence{
				Name:      r.Name,
				Type:      b.Type,
				Duration:  b.Duration,
				StartTime: b.StartTime,
				EndTime:   b.EndTime,
				Data:      r.Data,
			})
		}

		c.walk(r.Details)
	}
}

func (c *collector) add(o Occurrence) {
	if f := c.opts.Filter; f != nil {
		keep, err := f.Keep(occurrenceVars(o))
		if err != nil {
			c.errs = append(c.errs, err)
			c.opts.Logger.Warn().Err(err).Str("span", o.Name).Msg("Filter evaluation failed, keeping occurrence")
		}
		if !keep {
			return
		}
	}

	st, ok := c.buckets[o.Type]
	if !ok {
		st = &SpanStats{Name: o.Type}
		c.buckets[o.Type] = st
		c.order = append(c.order, o.Type)
	}
	st.Occurrences = append(st.Occurrences, o)
}

func (c *collector) keepBucket(st *SpanStats) bool {
	f := c.opts.BucketFilter
	if f == nil {
		return true
	}
	keep, err := f.Keep(bucketVars(st))
	if err != nil {
		c.errs = append(c.errs, err)
		c.opts.Logger.Warn().Err(err).Str("span", st.Name).Msg("Bucket filter evaluation failed, keeping span type")
	}
	return keep
}

// finish computes the aggregates of st from its occurrences. Ties keep the
// earliest occurrence as the minimum or maximum.
func finish(st *SpanStats) {
	st.Calls = len(st.Occurrences)
	if st.Calls == 0 {
		return
	}

	st.Min = Extreme{Name: st.Occurrences[0].Name, Duration: st.Occurrences[0].Duration}
	st.Max = st.Min
	st.TotalDuration = 0
	for _, o := range st.Occurrences {
		st.TotalDuration += o.Duration
		if o.Duration < st.Min.Duration {
			st.Min = Extreme{Name: o.Name, Duration: o.Duration}
		}
		if o.Duration > st.Max.Duration {
			st.Max = Extreme{Name: o.Name, Duration: o.Duration}
		}
	}
	st.AvgDuration = st.TotalDuration / float64(st.Calls)
}
