package span

import "sort"

// Synthesized bucket names.
const (
	ElapsedTime = "Elapsed Time"
	Other       = "Other"
)

// BucketKind says where a row's duration bucket came from.
type BucketKind string

const (
	KindDuration BucketKind = "duration"
	KindChild    BucketKind = "child"
	KindOther    BucketKind = "other"
	KindElapsed  BucketKind = "elapsed"
)

// Bucket is one named slice of a row's elapsed time.
type Bucket struct {
	Type      string     `json:"type"`
	Duration  float64    `json:"duration"`
	StartTime float64    `json:"startTime"`
	EndTime   float64    `json:"endTime"`
	Kind      BucketKind `json:"kind"`
}

// Row is a span occurrence ready for reporting. Times are relative to the
// waterfall origin.
type Row struct {
	Name      string         `json:"Name"`
	Type      string         `json:"type,omitempty"`
	Durations []Bucket       `json:"durations"`
	Details   []*Row         `json:"details,omitempty"`
	StartTime float64        `json:"startTime"`
	EndTime   float64        `json:"endTime"`
	Data      map[string]any `json:"data,omitempty"`
}

// Elapsed returns EndTime - StartTime.
func (r *Row) Elapsed() float64 {
	return r.EndTime - r.StartTime
}

// TypeName returns the declared type, falling back to the row name.
func (r *Row) TypeName() string {
	if r.Type != "" {
		return r.Type
	}
	return r.Name
}

// Render converts the children of root into rows with times relative to
// origin. Profiles carrying no time information at all are skipped.
func Render(root *Profile, origin Timestamp) []*Row {
	var rows []*Row
	root.EachChild(func(c *Profile) {
		if row := buildRow(c, origin); row != nil {
			rows = append(rows, row)
		}
	})
	sortRows(rows)
	return rows
}

// Bounds returns the earliest and latest time found anywhere below root.
func Bounds(root *Profile) (start, end *Timestamp) {
	root.EachChild(func(c *Profile) {
		s, e := bounds(c)
		start = earliest(start, s)
		end = latest(end, e)
	})
	return start, end
}

func bounds(p *Profile) (start, end *Timestamp) {
	start, end = p.StartTime, p.EndTime
	for _, label := range p.labelOrder {
		iv := p.Durations[label]
		start = earliest(start, earliest(iv.StartTime, iv.EndTime))
		end = latest(end, latest(iv.StartTime, iv.EndTime))
	}
	p.EachChild(func(c *Profile) {
		s, e := bounds(c)
		start = earliest(start, s)
		end = latest(end, e)
	})
	return start, end
}

// Headers returns "Name" followed by every bucket type in first-seen order.
func Headers(rows []*Row) []string {
	headers := []string{"Name"}
	seen := make(map[string]bool)
	var walk func([]*Row)
	walk = func(rows []*Row) {
		for _, r := range rows {
			for _, b := range r.Durations {
				if !seen[b.Type] {
					seen[b.Type] = true
					headers = append(headers, b.Type)
				}
			}
			walk(r.Details)
		}
	}
	walk(rows)
	return headers
}

func buildRow(p *Profile, origin Timestamp) *Row {
	start, end := bounds(p)
	if start == nil {
		return nil
	}
	if end == nil {
		end = start
	}

	row := &Row{
		Name:      p.ID,
		Type:      p.Type,
		StartTime: start.Sub(origin),
		EndTime:   end.Sub(origin),
		Data:      p.Data,
	}

	for _, label := range p.labelOrder {
		iv := p.Durations[label]
		s := earliest(iv.StartTime, iv.EndTime)
		e := latest(iv.StartTime, iv.EndTime)
		if s == nil {
			continue
		}
		rs, re := s.Sub(origin), e.Sub(origin)
		row.Durations = append(row.Durations, Bucket{
			Type:      label,
			Duration:  re - rs,
			StartTime: rs,
			EndTime:   re,
			Kind:      KindDuration,
		})
	}

	p.EachChild(func(c *Profile) {
		if child := buildRow(c, origin); child != nil {
			row.Details = append(row.Details, child)
		}
	})
	sortRows(row.Details)

	for _, child := range row.Details {
		row.Durations = append(row.Durations, Bucket{
			Type:      child.Name,
			Duration:  child.Elapsed(),
			StartTime: child.StartTime,
			EndTime:   child.EndTime,
			Kind:      KindChild,
		})
	}

	elapsed := row.Elapsed()
	if len(row.Durations) == 0 {
		row.Durations = []Bucket{{
			Type:      ElapsedTime,
			Duration:  elapsed,
			StartTime: row.StartTime,
			EndTime:   row.EndTime,
			Kind:      KindElapsed,
		}}
		return row
	}

	covered := 0.0
	for _, b := range row.Durations {
		covered += b.Duration
	}
	if gap := elapsed - covered; gap > 1e-9 {
		row.Durations = append(row.Durations, Bucket{
			Type:      Other,
			Duration:  gap,
			StartTime: row.StartTime,
			EndTime:   row.EndTime,
			Kind:      KindOther,
		})
	}
	return row
}

// sortRows orders sibling rows chronologically, keeping merge order on ties.
func sortRows(rows []*Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].StartTime < rows[j].StartTime
	})
}
