// Package metrics holds per-run analysis metrics and a shared rolling latency window.
package metrics

import (
	"sync"
	"time"
)

// Stage names recorded by the analyzer.
const (
	StageDetect   = "detect"
	StageSegment  = "segment"
	StageScore    = "score"
	StageValidate = "validate"
	StageTree     = "tree"
	StageReplay   = "replay"
)

// Collector accumulates stage timings and counters for one analysis run.
// Create one per run, or Reset it between runs.
type Collector struct {
	mu       sync.Mutex
	started  time.Time
	stages   map[string]time.Duration
	counters map[string]int
}

// NewCollector creates a Collector whose clock starts now.
func NewCollector() *Collector {
	c := &Collector{}
	c.Reset()
	return c
}

// Reset clears all data and restarts the run clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = time.Now()
	c.stages = make(map[string]time.Duration)
	c.counters = make(map[string]int)
}

// Stage starts timing name and returns the function that stops it.
// Repeated stages accumulate.
func (c *Collector) Stage(name string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		c.mu.Lock()
		c.stages[name] += elapsed
		c.mu.Unlock()
	}
}

// Add increments counter name by n.
func (c *Collector) Add(name string, n int) {
	c.mu.Lock()
	c.counters[name] += n
	c.mu.Unlock()
}

// Counter returns the value of counter name.
func (c *Collector) Counter(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

// StageMs returns a copy of stage durations in milliseconds.
func (c *Collector) StageMs() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.stages))
	for k, v := range c.stages {
		out[k] = v.Milliseconds()
	}
	return out
}

// Elapsed returns the time since the collector was created or last reset.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.started)
}
