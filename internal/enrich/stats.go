package enrich

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
	failed     bool
}

// StatsSnapshot is a point-in-time aggregate of one analyzer's calls.
type StatsSnapshot struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// Stats tracks recent analyzer call latencies per module within a rolling
// window. It is shared by every document a process enriches.
type Stats struct {
	mu      sync.Mutex
	samples map[string][]sample
	maxAge  time.Duration
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		samples: make(map[string][]sample),
		maxAge:  maxAge,
	}
}

func (s *Stats) Record(module string, durationMs int64, failed bool) {
	if durationMs < 0 {
		durationMs = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(module, now)
	s.samples[module] = append(s.samples[module], sample{
		timestamp:  now,
		durationMs: durationMs,
		failed:     failed,
	})
}

// Snapshot aggregates every module with samples in the window.
func (s *Stats) Snapshot() map[string]StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]StatsSnapshot, len(s.samples))
	for module := range s.samples {
		s.pruneLocked(module, now)
		samples := s.samples[module]
		if len(samples) == 0 {
			continue
		}

		values := make([]int64, 0, len(samples))
		var sum int64
		errs := 0
		for _, sm := range samples {
			values = append(values, sm.durationMs)
			sum += sm.durationMs
			if sm.failed {
				errs++
			}
		}
		slices.Sort(values)

		out[module] = StatsSnapshot{
			Count:  len(values),
			Errors: errs,
			MinMs:  values[0],
			MaxMs:  values[len(values)-1],
			AvgMs:  float64(sum) / float64(len(values)),
			P50Ms:  percentile(values, 50),
			P95Ms:  percentile(values, 95),
			P99Ms:  percentile(values, 99),
		}
	}
	return out
}

func (s *Stats) pruneLocked(module string, now time.Time) {
	cutoff := now.Add(-s.maxAge)
	samples := s.samples[module]
	writeIdx := 0
	for _, sm := range samples {
		if !sm.timestamp.Before(cutoff) {
			samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples[module] = samples[:writeIdx]
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
