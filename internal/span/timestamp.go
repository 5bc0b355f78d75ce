package span

import (
	"encoding/json"
	"fmt"
)

// Units reported for the two timestamp representations.
const (
	UnitsMillis = "ms"
	UnitsNanos  = "ns"
)

// Timestamp is a point in time. Scalar timestamps carry milliseconds in
// Millis; high resolution timestamps carry a seconds and nanoseconds pair.
type Timestamp struct {
	Millis  float64
	Sec     int64
	Nsec    int64
	HighRes bool
}

// Millis returns a scalar millisecond timestamp.
func Millis(ms float64) Timestamp {
	return Timestamp{Millis: ms}
}

// HighRes returns a two-component timestamp, normalizing nsec into [0, 1e9).
func HighRes(sec, nsec int64) Timestamp {
	sec += nsec / 1e9
	nsec %= 1e9
	if nsec < 0 {
		sec--
		nsec += 1e9
	}
	return Timestamp{Sec: sec, Nsec: nsec, HighRes: true}
}

// Units returns "ns" for high resolution timestamps and "ms" otherwise.
func (t Timestamp) Units() string {
	if t.HighRes {
		return UnitsNanos
	}
	return UnitsMillis
}

// Sub returns t-o in the units of t. A high resolution timestamp subtracts
// component-wise so large second counts keep nanosecond precision.
func (t Timestamp) Sub(o Timestamp) float64 {
	if t.HighRes {
		if !o.HighRes {
			o = fromMillis(o.Millis)
		}
		return float64(t.Sec-o.Sec)*1e9 + float64(t.Nsec-o.Nsec)
	}
	if o.HighRes {
		return t.Millis - (float64(o.Sec)*1e3 + float64(o.Nsec)/1e6)
	}
	return t.Millis - o.Millis
}

// Before reports whether t is earlier than o.
func (t Timestamp) Before(o Timestamp) bool {
	return t.Sub(o) < 0
}

func (t Timestamp) String() string {
	if t.HighRes {
		return fmt.Sprintf("%d.%09ds", t.Sec, t.Nsec)
	}
	return fmt.Sprintf("%gms", t.Millis)
}

func fromMillis(ms float64) Timestamp {
	ns := int64(ms * 1e6)
	return HighRes(0, ns)
}

func earliest(a *Timestamp, b *Timestamp) *Timestamp {
	if a == nil {
		return b
	}
	if b == nil || a.Before(*b) {
		return a
	}
	return b
}

func latest(a *Timestamp, b *Timestamp) *Timestamp {
	if a == nil {
		return b
	}
	if b == nil || b.Before(*a) {
		return a
	}
	return b
}

// MarshalJSON encodes scalar timestamps as a number of milliseconds and high
// resolution timestamps as a [sec, nsec] pair.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.HighRes {
		return json.Marshal([2]int64{t.Sec, t.Nsec})
	}
	return json.Marshal(t.Millis)
}

// UnmarshalJSON accepts either encoding produced by MarshalJSON.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var pair [2]int64
	if err := json.Unmarshal(b, &pair); err == nil {
		*t = HighRes(pair[0], pair[1])
		return nil
	}
	var ms float64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("timestamp must be a number or a [sec, nsec] pair: %w", err)
	}
	*t = Millis(ms)
	return nil
}
