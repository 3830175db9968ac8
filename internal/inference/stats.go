package inference

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker accumulates classification latencies and reports
// mean/min/max/P95. It keeps a bounded window of recent observations.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64 // milliseconds
	max     int
}

// NewLatencyTracker returns a tracker bounded to the most recent
// observations.
func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{max: 4096}
}

// Record adds one observation.
func (t *LatencyTracker) Record(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.samples) >= t.max {
		t.samples = t.samples[len(t.samples)/2:]
	}
	t.samples = append(t.samples, ms)
}

// LatencySummary holds aggregate latency figures in milliseconds.
type LatencySummary struct {
	Count  int
	MeanMs float64
	MinMs  float64
	MaxMs  float64
	P95Ms  float64
}

// Summary computes aggregates over the recorded observations.
func (t *LatencyTracker) Summary() LatencySummary {
	t.mu.Lock()
	samples := make([]float64, len(t.samples))
	copy(samples, t.samples)
	t.mu.Unlock()

	if len(samples) == 0 {
		return LatencySummary{}
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range samples {
		sum += v
	}

	p95Idx := int(float64(len(sorted))*0.95) - 1
	if p95Idx < 0 {
		p95Idx = 0
	}

	return LatencySummary{
		Count:  len(samples),
		MeanMs: sum / float64(len(samples)),
		MinMs:  sorted[0],
		MaxMs:  sorted[len(sorted)-1],
		P95Ms:  sorted[p95Idx],
	}
}

// RateTracker measures the achieved sample rate over a sliding interval.
type RateTracker struct {
	mu       sync.Mutex
	interval time.Duration
	ticks    []time.Time
}

// NewRateTracker measures arrivals within the given interval.
func NewRateTracker(interval time.Duration) *RateTracker {
	return &RateTracker{interval: interval}
}

// Tick records one arrival.
func (r *RateTracker) Tick() {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, now)
	r.prune(now)
}

// Rate returns arrivals per interval.
func (r *RateTracker) Rate() float64 {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(now)
	return float64(len(r.ticks))
}

func (r *RateTracker) prune(now time.Time) {
	cutoff := now.Add(-r.interval)
	i := 0
	for ; i < len(r.ticks); i++ {
		if r.ticks[i].After(cutoff) {
			break
		}
	}
	r.ticks = r.ticks[i:]
}
