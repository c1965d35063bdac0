package review

import (
	"slices"
	"sync"
	"time"
)

type callSample struct {
	at     time.Time
	ms     int64
	failed bool
}

// StatsSnapshot aggregates the calls inside the rolling window. Latency
// figures cover successful calls only.
type StatsSnapshot struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// Stats tracks recent review call outcomes.
type Stats struct {
	mu      sync.Mutex
	window  time.Duration
	samples []callSample
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{window: window, samples: make([]callSample, 0, 128)}
}

// Record adds one call. A nil receiver ignores the call.
func (s *Stats) Record(ms int64, err error) {
	if s == nil {
		return
	}
	if ms < 0 {
		ms = 0
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(now)
	s.samples = append(s.samples, callSample{at: now, ms: ms, failed: err != nil})
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(time.Now())

	var snap StatsSnapshot
	lat := make([]int64, 0, len(s.samples))
	var sum int64
	for _, c := range s.samples {
		if c.failed {
			snap.Failures++
			continue
		}
		lat = append(lat, c.ms)
		sum += c.ms
	}
	if len(lat) == 0 {
		return snap
	}
	slices.Sort(lat)
	snap.Count = len(lat)
	snap.MinMs = lat[0]
	snap.MaxMs = lat[len(lat)-1]
	snap.AvgMs = float64(sum) / float64(len(lat))
	snap.P50Ms = percentile(lat, 50)
	snap.P95Ms = percentile(lat, 95)
	snap.P99Ms = percentile(lat, 99)
	return snap
}

func (s *Stats) expire(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.samples) && s.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.samples = append(s.samples[:0], s.samples[i:]...)
	}
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	pos := pct / 100 * float64(len(sorted)-1)
	i := int(pos)
	if i+1 >= len(sorted) {
		return float64(sorted[i])
	}
	frac := pos - float64(i)
	return float64(sorted[i]) + frac*float64(sorted[i+1]-sorted[i])
}
