// Package export serializes finalized waterfalls for other tools.
package export

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"

	"waterfall-mcp/internal/span"
	"waterfall-mcp/internal/waterfall"
)

// BuildProfile converts the rows of gui into a pprof profile. Every row
// becomes one sample whose stack is the row's path in the waterfall and
// whose wall value is the time not covered by its children.
func BuildProfile(gui *waterfall.GUI) *profile.Profile {
	b := &profileBuilder{
		units:     gui.Units,
		locations: make(map[string]*profile.Location),
		prof: &profile.Profile{
			SampleType: []*profile.ValueType{
				{Type: "calls", Unit: "count"},
				{Type: "wall", Unit: "nanoseconds"},
			},
			PeriodType: &profile.ValueType{Type: "wall", Unit: "nanoseconds"},
			Period:     1,
		},
	}
	if gui.Stats != nil {
		b.prof.DurationNanos = b.nanos(gui.Stats.TotalExecutionTime)
	}

	b.addRows(gui.Rows, nil)
	return b.prof
}

// WritePprof writes gui as a gzipped pprof profile.
func WritePprof(w io.Writer, gui *waterfall.GUI) error {
	if err := BuildProfile(gui).Write(w); err != nil {
		return fmt.Errorf("failed to write pprof profile: %w", err)
	}
	return nil
}

type profileBuilder struct {
	units     string
	prof      *profile.Profile
	locations map[string]*profile.Location
}

// addRows adds a sample per row. stack holds the parents' locations, leaf first.
func (b *profileBuilder) addRows(rows []*span.Row, stack []*profile.Location) {
	for _, r := range rows {
		frames := append([]*profile.Location{b.location(r.Name)}, stack...)

		self := r.Elapsed()
		for _, child := range r.Details {
			self -= child.Elapsed()
		}
		if self < 0 {
			self = 0
		}

		b.prof.Sample = append(b.prof.Sample, &profile.Sample{
			Location: frames,
			Value:    []int64{1, b.nanos(self)},
			Label:    map[string][]string{"type": {r.TypeName()}},
		})

		b.addRows(r.Details, frames)
	}
}

func (b *profileBuilder) location(name string) *profile.Location {
	if loc, ok := b.locations[name]; ok {
		return loc
	}

	fn := &profile.Function{
		ID:         uint64(len(b.prof.Function) + 1),
		Name:       name,
		SystemName: name,
	}
	b.prof.Function = append(b.prof.Function, fn)

	loc := &profile.Location{
		ID:   uint64(len(b.prof.Location) + 1),
		Line: []profile.Line{{Function: fn}},
	}
	b.prof.Location = append(b.prof.Location, loc)
	b.locations[name] = loc
	return loc
}

func (b *profileBuilder) nanos(d float64) int64 {
	if b.units == span.UnitsNanos {
		return int64(d)
	}
	return int64(d * 1e6)
}
