package waterfall

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterfall-mcp/internal/span"
)

// fakeClock returns the time it was last set to.
type fakeClock struct {
	ms float64
}

func (c *fakeClock) Now() span.Timestamp { return span.Millis(c.ms) }
func (c *fakeClock) Units() string       { return span.UnitsMillis }

func newTestWaterfall() (*Waterfall, *fakeClock, *bytes.Buffer) {
	clock := &fakeClock{}
	var buf bytes.Buffer
	w := New(WithClock(clock), WithLogger(zerolog.New(&buf)))
	return w, clock, &buf
}

func TestWaterfall_Scenario(t *testing.T) {
	w, clock, _ := newTestWaterfall()

	w.Start("/r", nil)
	w.Start("/r/a", nil)
	clock.ms = 5
	w.End("/r/a", nil)
	clock.ms = 10
	w.End("/r", nil)

	gui := w.GUI()
	require.Empty(t, gui.Errors)
	assert.Equal(t, span.UnitsMillis, gui.Units)
	require.Len(t, gui.Rows, 1)

	r := gui.Rows[0]
	assert.Equal(t, "r", r.Name)
	require.Len(t, r.Details, 1)
	assert.Equal(t, 5.0, r.Details[0].Elapsed())

	var other *span.Bucket
	for i := range r.Durations {
		if r.Durations[i].Type == span.Other {
			other = &r.Durations[i]
		}
	}
	require.NotNil(t, other)
	assert.Equal(t, 5.0, other.Duration)

	assert.Equal(t, []string{"Name", "a", span.Other, span.ElapsedTime}, gui.Headers)
	assert.Equal(t, 10.0, gui.Stats.TotalExecutionTime)
	assert.Contains(t, gui.Summary, "Total Execution Time: 10.000 ms")
	assert.Equal(t, gui.Summary, w.Summary())
}

func TestWaterfall_StartReturnsTimestamp(t *testing.T) {
	w, clock, _ := newTestWaterfall()
	clock.ms = 42

	assert.Equal(t, span.Millis(42), w.Start("a", nil))
	assert.Equal(t, span.Millis(42), w.Event("tick", nil))
	assert.Equal(t, span.Millis(42), w.End("a", nil))
}

func TestWaterfall_TimesAreZeroBased(t *testing.T) {
	w, clock, _ := newTestWaterfall()

	clock.ms = 1000
	w.Start("a", nil)
	clock.ms = 1002
	w.Event("checkpoint", map[string]any{"step": 1})
	clock.ms = 1007
	w.End("a", nil)

	gui := w.GUI()
	require.Len(t, gui.Rows, 1)
	assert.Equal(t, 0.0, gui.Rows[0].StartTime)
	assert.Equal(t, 7.0, gui.Rows[0].EndTime)

	require.Len(t, gui.Events, 1)
	assert.Equal(t, "checkpoint", gui.Events[0].Name)
	assert.Equal(t, 2.0, gui.Events[0].Time)
	assert.Equal(t, span.Millis(1000), gui.AbsoluteStartTime)
	assert.Equal(t, span.Millis(1007), gui.AbsoluteEndTime)
}

func TestWaterfall_NonFatalErrors(t *testing.T) {
	w, clock, logs := newTestWaterfall()

	w.Start("a//b", nil)
	w.End("ghost", nil)
	w.Start("ok", nil)
	clock.ms = 3
	w.End("ok", nil)
	w.Start("dangling", nil)

	gui := w.GUI()
	require.Len(t, gui.Problems, 3)
	assert.True(t, errors.Is(gui.Problems[0], span.ErrInvalidProfileKey))
	assert.True(t, errors.Is(gui.Problems[1], span.ErrUnmatchedEnd))
	assert.True(t, errors.Is(gui.Problems[2], span.ErrUnterminatedSpan))
	assert.Len(t, gui.Errors, 3)

	require.Len(t, gui.Rows, 1)
	assert.Equal(t, "ok", gui.Rows[0].Name)
	assert.Contains(t, logs.String(), "end was never called")
}

func TestWaterfall_PauseResume(t *testing.T) {
	w, clock, logs := newTestWaterfall()

	w.Start("kept", nil)
	clock.ms = 1
	w.End("kept", nil)

	w.Pause()
	assert.True(t, w.Paused())
	w.Pause()
	assert.Contains(t, logs.String(), "already paused")

	w.Start("dropped", nil)
	w.End("dropped", nil)
	w.Record(span.Call{Type: span.CallStart, Key: "replayed", Time: span.Millis(1)})

	w.Resume()
	assert.False(t, w.Paused())
	w.Resume()
	assert.Contains(t, logs.String(), "not paused")

	clock.ms = 2
	w.Start("after", nil)
	clock.ms = 4
	w.End("after", nil)

	assert.Len(t, w.Calls(), 4)

	gui := w.GUI()
	require.Len(t, gui.Rows, 2)
	assert.Equal(t, "kept", gui.Rows[0].Name)
	assert.Equal(t, "after", gui.Rows[1].Name)
}

func TestWaterfall_Clear(t *testing.T) {
	w, _, _ := newTestWaterfall()
	w.Start("a", nil)
	w.Clear()
	assert.Empty(t, w.Calls())

	gui := w.GUI()
	assert.Empty(t, gui.Rows)
	assert.Empty(t, gui.Errors)
}

func TestWaterfall_DisabledAfterFinalize(t *testing.T) {
	w, clock, logs := newTestWaterfall()
	clock.ms = 1
	w.Start("a", nil)
	clock.ms = 2
	w.End("a", nil)

	first := w.GUI()
	assert.True(t, w.Finalized())

	assert.Equal(t, span.Timestamp{}, w.Start("b", nil))
	assert.Equal(t, span.Timestamp{}, w.End("b", nil))
	assert.Equal(t, span.Timestamp{}, w.Event("c", nil))
	w.Pause()
	w.Resume()
	w.Clear()
	assert.ErrorIs(t, w.Configure(Options{}), ErrFinalized)

	assert.Same(t, first, w.GUI())
	assert.Len(t, w.Calls(), 2)
	assert.Contains(t, logs.String(), "already finalized")
}

func TestWaterfall_RepeatedCalls(t *testing.T) {
	w, clock, _ := newTestWaterfall()
	for i := 0; i < 5; i++ {
		clock.ms = float64(i * 10)
		w.Start("task", nil)
		clock.ms = float64(i*10 + 2)
		w.End("task", nil)
	}

	gui := w.GUI()
	assert.Len(t, gui.Rows, 5)

	st, ok := gui.Stats.Lookup("task")
	require.True(t, ok)
	assert.Equal(t, 5, st.Calls)
	assert.Equal(t, 10.0, st.TotalDuration)
}

func TestWaterfall_ConfigureFilters(t *testing.T) {
	w, clock, _ := newTestWaterfall()
	require.NoError(t, w.Configure(Options{Filter: "duration >= 2.0", BucketFilter: `name != "skip"`}))

	w.Start("fast", nil)
	clock.ms = 1
	w.End("fast", nil)
	w.Start("slow", nil)
	clock.ms = 5
	w.End("slow", nil)
	w.Start("skip", nil)
	clock.ms = 9
	w.End("skip", nil)

	gui := w.GUI()
	_, ok := gui.Stats.Lookup("fast")
	assert.False(t, ok)
	_, ok = gui.Stats.Lookup("slow")
	assert.True(t, ok)
	_, ok = gui.Stats.Lookup("skip")
	assert.False(t, ok)
}

func TestWaterfall_ConfigureRejectsBadFilter(t *testing.T) {
	w, _, _ := newTestWaterfall()
	require.NoError(t, w.Configure(Options{Filter: "duration > 1.0"}))

	err := w.Configure(Options{Filter: "duration >"})
	require.Error(t, err)
	require.NotNil(t, w.filter)
	assert.Equal(t, "duration > 1.0", w.filter.String())
}

func TestWaterfall_ConfigureReplacesAllOptions(t *testing.T) {
	w, _, _ := newTestWaterfall()
	require.NoError(t, w.Configure(Options{Filter: "duration > 1.0", BucketFilter: "calls > 1"}))
	require.NotNil(t, w.filter)
	require.NotNil(t, w.bucketFilter)

	require.NoError(t, w.Configure(Options{HighResolution: true, Filter: "duration > 1.0"}))
	require.NotNil(t, w.filter)
	assert.Equal(t, "duration > 1.0", w.filter.String())
	assert.Nil(t, w.bucketFilter)
	assert.Equal(t, span.UnitsNanos, w.clock.Units())
}

func TestWaterfall_HighResolution(t *testing.T) {
	w := New()
	require.NoError(t, w.Configure(Options{HighResolution: true}))

	w.Record(span.Call{Type: span.CallStart, Key: "a", Time: span.HighRes(5, 0)})
	w.Record(span.Call{Type: span.CallEnd, Key: "a", Time: span.HighRes(5, 1500)})

	gui := w.GUI()
	assert.Equal(t, span.UnitsNanos, gui.Units)
	require.Len(t, gui.Rows, 1)
	assert.Equal(t, 1500.0, gui.Rows[0].EndTime)
	assert.Contains(t, gui.Summary, "Total Execution Time: 1500.000 ns")
}

func TestWaterfall_ClockResolutionLockedAfterRecording(t *testing.T) {
	w := New()
	w.Start("a", nil)
	require.NoError(t, w.Configure(Options{HighResolution: true}))
	assert.Equal(t, span.UnitsMillis, w.clock.Units())
}

func TestGUI_JSON(t *testing.T) {
	w, clock, _ := newTestWaterfall()
	w.Start("a:warm", map[string]any{"route": "/x"})
	clock.ms = 2
	w.End("a:warm", nil)

	b, err := json.Marshal(w.GUI())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "ms", decoded["units"])
	assert.Contains(t, decoded, "headers")
	assert.Contains(t, decoded, "stats")

	rows := decoded["rows"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "a", row["Name"])
	durations := row["durations"].([]any)
	require.Len(t, durations, 1)
	assert.Equal(t, "warm", durations[0].(map[string]any)["type"])
}
