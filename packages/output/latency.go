package output

import (
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/tuner/packages/core/runner"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Latency accumulates call durations into a histogram with microsecond
// resolution. Values outside 1us..60s are clamped.
type Latency struct {
	hist *hdrhistogram.Histogram
}

// LatencySummary holds percentiles of the recorded durations.
type LatencySummary struct {
	Count int64
	Min   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

func NewLatency() *Latency {
	return &Latency{hist: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)}
}

func (l *Latency) Record(d time.Duration) {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	_ = l.hist.RecordValue(us)
}

// Add records every executed call of result. Skipped calls carry no timing.
func (l *Latency) Add(result *runner.RunResult) {
	for _, r := range result.Results {
		if !r.Skipped {
			l.Record(r.Duration)
		}
	}
}

func (l *Latency) Count() int64 {
	return l.hist.TotalCount()
}

func (l *Latency) Summary() LatencySummary {
	if l.hist.TotalCount() == 0 {
		return LatencySummary{}
	}
	return LatencySummary{
		Count: l.hist.TotalCount(),
		Min:   usToDuration(l.hist.Min()),
		Mean:  time.Duration(l.hist.Mean() * float64(time.Microsecond)),
		P50:   usToDuration(l.hist.ValueAtQuantile(50)),
		P95:   usToDuration(l.hist.ValueAtQuantile(95)),
		P99:   usToDuration(l.hist.ValueAtQuantile(99)),
		Max:   usToDuration(l.hist.Max()),
	}
}

func (s LatencySummary) String() string {
	return fmt.Sprintf("p50 %s, p95 %s, p99 %s, max %s",
		formatLatency(s.P50), formatLatency(s.P95), formatLatency(s.P99), formatLatency(s.Max))
}

func usToDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}

func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

func durationMillis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
