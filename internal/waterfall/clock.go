package waterfall

import (
	"time"

	"waterfall-mcp/internal/span"
)

// Clock supplies timestamps for recorded calls.
type Clock interface {
	Now() span.Timestamp
	Units() string
}

var processStart = time.Now()

// MillisClock reports scalar milliseconds since process start.
type MillisClock struct{}

func (MillisClock) Now() span.Timestamp {
	return span.Millis(float64(time.Since(processStart).Nanoseconds()) / 1e6)
}

func (MillisClock) Units() string { return span.UnitsMillis }

// HighResClock reports seconds and nanoseconds since process start.
type HighResClock struct{}

func (HighResClock) Now() span.Timestamp {
	return span.HighRes(0, time.Since(processStart).Nanoseconds())
}

func (HighResClock) Units() string { return span.UnitsNanos }
