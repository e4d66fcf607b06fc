package metrics

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	format     string
	durationMs int64
}

// Snapshot is a point-in-time aggregate of analysis latencies.
type Snapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// WindowSnapshot is the overall aggregate plus one aggregate per source format.
type WindowSnapshot struct {
	Snapshot
	ByFormat map[string]Snapshot `json:"by_format,omitempty"`
}

// Window tracks recent analysis latencies within a rolling time window.
// It is shared across runs; per-run data lives in a Collector.
type Window struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewWindow(maxAge time.Duration) *Window {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Window{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds one completed analysis.
func (w *Window) Record(format string, durationMs int64) {
	if durationMs < 0 {
		durationMs = 0
	}
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	w.samples = append(w.samples, sample{
		timestamp:  now,
		format:     format,
		durationMs: durationMs,
	})
}

func (w *Window) Snapshot() WindowSnapshot {
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	if len(w.samples) == 0 {
		return WindowSnapshot{}
	}

	all := make([]int64, 0, len(w.samples))
	byFormat := map[string][]int64{}
	for _, sm := range w.samples {
		all = append(all, sm.durationMs)
		if sm.format != "" {
			byFormat[sm.format] = append(byFormat[sm.format], sm.durationMs)
		}
	}

	out := WindowSnapshot{Snapshot: aggregate(all)}
	if len(byFormat) > 0 {
		out.ByFormat = make(map[string]Snapshot, len(byFormat))
		for f, vals := range byFormat {
			out.ByFormat[f] = aggregate(vals)
		}
	}
	return out
}

func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	writeIdx := 0
	for _, sm := range w.samples {
		if !sm.timestamp.Before(cutoff) {
			w.samples[writeIdx] = sm
			writeIdx++
		}
	}
	w.samples = w.samples[:writeIdx]
}

func aggregate(values []int64) Snapshot {
	if len(values) == 0 {
		return Snapshot{}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	var sum int64
	for _, v := range values {
		sum += v
	}
	return Snapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
