package span

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bucket(r *Row, typ string) (Bucket, bool) {
	for _, b := range r.Durations {
		if b.Type == typ {
			return b, true
		}
	}
	return Bucket{}, false
}

func TestRender_OtherCoversUnaccountedTime(t *testing.T) {
	res := reconcile(
		start("/r", 0),
		start("/r/a", 0),
		end("/r/a", 5),
		end("/r", 10),
	)
	rows := Render(res.Root, Millis(0))

	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, "r", r.Name)
	assert.Equal(t, 10.0, r.Elapsed())

	require.Len(t, r.Details, 1)
	assert.Equal(t, "a", r.Details[0].Name)
	assert.Equal(t, 5.0, r.Details[0].Elapsed())

	child, ok := bucket(r, "a")
	require.True(t, ok)
	assert.Equal(t, KindChild, child.Kind)
	assert.Equal(t, 5.0, child.Duration)

	other, ok := bucket(r, Other)
	require.True(t, ok)
	assert.Equal(t, 5.0, other.Duration)

	elapsed, ok := bucket(r.Details[0], ElapsedTime)
	require.True(t, ok)
	assert.Equal(t, 5.0, elapsed.Duration)
}

func TestRender_TimesAreRelativeToOrigin(t *testing.T) {
	res := reconcile(start("a", 100), end("a", 104), start("b", 101), end("b", 102))
	rows := Render(res.Root, Millis(100))

	require.Len(t, rows, 2)
	assert.Equal(t, 0.0, rows[0].StartTime)
	assert.Equal(t, 4.0, rows[0].EndTime)
	assert.Equal(t, 1.0, rows[1].StartTime)
}

func TestRender_SiblingsAreChronological(t *testing.T) {
	res := reconcile(start("p", 0), start("a", 1), start("b", 2), end("b", 3), end("a", 4), end("p", 5))
	require.Len(t, res.Root.Children["p"], 1)

	rows := Render(res.Root, Millis(0))
	require.Len(t, rows, 1)
	// b was merged into a (nearest open span), a into p.
	require.Len(t, rows[0].Details, 1)
	assert.Equal(t, "a", rows[0].Details[0].Name)

	res = reconcile(start("late", 5), end("late", 6), start("early", 1), end("early", 2))
	rows = Render(res.Root, Millis(0))
	require.Len(t, rows, 2)
	assert.Equal(t, "early", rows[0].Name)
	assert.Equal(t, "late", rows[1].Name)
}

func TestRender_DurationBuckets(t *testing.T) {
	res := reconcile(
		start("a:warm", 0),
		end("a:warm", 3),
		start("a:cold", 3),
		end("a:cold", 7),
	)
	rows := Render(res.Root, Millis(0))

	require.Len(t, rows, 1)
	a := rows[0]
	assert.Equal(t, 7.0, a.Elapsed())

	warm, ok := bucket(a, "warm")
	require.True(t, ok)
	assert.Equal(t, KindDuration, warm.Kind)
	assert.Equal(t, 3.0, warm.Duration)

	_, ok = bucket(a, Other)
	assert.False(t, ok, "buckets cover the whole span")
	_, ok = bucket(a, ElapsedTime)
	assert.False(t, ok)
}

func TestRender_ChildTimesPropagateUpward(t *testing.T) {
	// p itself only spans 2..3 but its child starts earlier and ends later.
	p := &Profile{ID: "p", Type: "p"}
	s, e := Millis(2), Millis(3)
	p.StartTime, p.EndTime = &s, &e
	cs, ce := Millis(1), Millis(9)
	p.Add(&Profile{ID: "c", Type: "c", StartTime: &cs, EndTime: &ce, Closed: true})

	root := NewRoot()
	root.Add(p)
	rows := Render(root, Millis(0))

	require.Len(t, rows, 1)
	assert.Equal(t, 1.0, rows[0].StartTime)
	assert.Equal(t, 9.0, rows[0].EndTime)
}

func TestRender_HighResolution(t *testing.T) {
	res := Reconcile([]Call{
		{Type: CallStart, Key: "a", Time: HighRes(10, 999_999_000)},
		{Type: CallEnd, Key: "a", Time: HighRes(11, 1_000)},
	}, nopLogger())
	rows := Render(res.Root, HighRes(10, 999_999_000))

	require.Len(t, rows, 1)
	assert.Equal(t, 0.0, rows[0].StartTime)
	assert.Equal(t, 2000.0, rows[0].EndTime)
}

func TestBoundsAndHeaders(t *testing.T) {
	res := reconcile(start("/r", 2), start("/r/a:x", 3), end("/r/a:x", 4), end("/r", 8))

	s, e := Bounds(res.Root)
	require.NotNil(t, s)
	require.NotNil(t, e)
	assert.Equal(t, 2.0, s.Millis)
	assert.Equal(t, 8.0, e.Millis)

	rows := Render(res.Root, *s)
	assert.Equal(t, []string{"Name", "a", Other, "x"}, Headers(rows))
}
