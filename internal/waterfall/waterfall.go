// Package waterfall records start, end and event calls and turns them into a
// renderable span tree with latency statistics.
//
// A Waterfall is not safe for concurrent use. Spans belonging to interleaved
// operations may be closed in any order; an end is matched to the nearest
// open start with the same key.
package waterfall

import (
	"errors"

	"github.com/rs/zerolog"

	"waterfall-mcp/internal/analyzer"
	"waterfall-mcp/internal/span"
)

// ErrFinalized is returned by Configure once the GUI has been built.
var ErrFinalized = errors.New("waterfall already finalized")

// Options are the runtime settings accepted by Configure.
type Options struct {
	// HighResolution records [sec, nsec] timestamps reported in ns
	// instead of scalar milliseconds.
	HighResolution bool `yaml:"high_resolution"`
	// Filter is a CEL predicate over single occurrences.
	Filter string `yaml:"filter"`
	// BucketFilter is a CEL predicate over per-type aggregates.
	BucketFilter string `yaml:"bucket_filter"`
}

// Option configures a Waterfall at construction.
type Option func(*Waterfall)

// WithLogger sets the logger used for non-fatal recording errors.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Waterfall) { w.logger = logger }
}

// WithClock overrides the clock used by Start, End and Event.
func WithClock(clock Clock) Option {
	return func(w *Waterfall) { w.clock = clock }
}

// Waterfall is the recording façade.
type Waterfall struct {
	logger zerolog.Logger
	clock  Clock

	filter       *analyzer.Filter
	bucketFilter *analyzer.Filter

	calls  []span.Call
	record func(span.Call)
	paused bool

	gui *GUI
}

// New returns an empty Waterfall recording scalar millisecond timestamps.
func New(opts ...Option) *Waterfall {
	w := &Waterfall{
		logger: zerolog.Nop(),
		clock:  MillisClock{},
	}
	w.record = w.appendCall
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start records the start of the span named by key and returns its timestamp.
func (w *Waterfall) Start(key string, data map[string]any) span.Timestamp {
	return w.now(span.CallStart, key, "", data)
}

// End records the end of the span named by key and returns its timestamp.
func (w *Waterfall) End(key string, data map[string]any) span.Timestamp {
	return w.now(span.CallEnd, key, "", data)
}

// Event records a point-in-time marker and returns its timestamp.
func (w *Waterfall) Event(name string, data map[string]any) span.Timestamp {
	return w.now(span.CallEvent, "", name, data)
}

func (w *Waterfall) now(typ span.CallType, key, name string, data map[string]any) span.Timestamp {
	if w.disabled(string(typ)) {
		return span.Timestamp{}
	}
	t := w.clock.Now()
	w.record(span.Call{Type: typ, Key: key, Name: name, Time: t, Data: data})
	return t
}

// Record appends a call carrying its own timestamp, as when replaying a
// recorded call log. It obeys Pause and finalization like Start and End.
func (w *Waterfall) Record(c span.Call) {
	if w.disabled("record") {
		return
	}
	w.record(c)
}

func (w *Waterfall) appendCall(c span.Call) {
	w.calls = append(w.calls, c)
}

func (w *Waterfall) discardCall(span.Call) {}

// Calls returns a copy of the recorded call log.
func (w *Waterfall) Calls() []span.Call {
	return append([]span.Call(nil), w.calls...)
}

// Clear drops every recorded call.
func (w *Waterfall) Clear() {
	if w.disabled("clear") {
		return
	}
	w.calls = nil
}

// Pause turns recording into a no-op until Resume is called. Calls already
// recorded are kept.
func (w *Waterfall) Pause() {
	if w.disabled("pause") {
		return
	}
	if w.paused {
		w.logger.Warn().Msg("Waterfall already paused")
		return
	}
	w.paused = true
	w.record = w.discardCall
}

// Resume restores recording after Pause.
func (w *Waterfall) Resume() {
	if w.disabled("resume") {
		return
	}
	if !w.paused {
		w.logger.Warn().Msg("Waterfall is not paused")
		return
	}
	w.paused = false
	w.record = w.appendCall
}

// Paused reports whether recording is paused.
func (w *Waterfall) Paused() bool {
	return w.paused
}

// Configure replaces the whole configuration with opts: an empty Filter or
// BucketFilter removes a filter installed earlier, so callers changing one
// setting pass the others unchanged. Filters are compiled up front; an
// invalid expression is returned and leaves the previous filter in place.
// The clock resolution can only change while the call log is empty.
func (w *Waterfall) Configure(opts Options) error {
	if w.disabled("configure") {
		return ErrFinalized
	}

	var errs []error
	if f, err := compileFilter(opts.Filter, analyzer.NewOccurrenceFilter); err != nil {
		errs = append(errs, err)
	} else {
		w.filter = f
	}
	if f, err := compileFilter(opts.BucketFilter, analyzer.NewBucketFilter); err != nil {
		errs = append(errs, err)
	} else {
		w.bucketFilter = f
	}

	highRes := w.clock.Units() == span.UnitsNanos
	if opts.HighResolution != highRes {
		if len(w.calls) > 0 {
			w.logger.Warn().Bool("high_resolution", opts.HighResolution).Msg("Cannot change clock resolution after calls were recorded")
		} else if opts.HighResolution {
			w.clock = HighResClock{}
		} else {
			w.clock = MillisClock{}
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		w.logger.Error().Err(err).Msg("Rejected waterfall filter")
	}
	return err
}

func compileFilter(expr string, compile func(string) (*analyzer.Filter, error)) (*analyzer.Filter, error) {
	if expr == "" {
		return nil, nil
	}
	return compile(expr)
}

// Finalized reports whether GUI has been called.
func (w *Waterfall) Finalized() bool {
	return w.gui != nil
}

func (w *Waterfall) disabled(method string) bool {
	if w.gui == nil {
		return false
	}
	w.logger.Error().Str("method", method).Msg("Waterfall already finalized, ignoring call")
	return true
}
