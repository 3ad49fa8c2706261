package bench

import (
	"math"
	"sort"
	"time"
)

// LatencyStats accumulates statement latencies in microseconds. Min and Max
// are only meaningful when Count > 0.
type LatencyStats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64

	samples []float64
}

func NewLatencyStats() *LatencyStats {
	return &LatencyStats{}
}

func (s *LatencyStats) Record(d time.Duration) {
	s.RecordMicros(float64(d.Nanoseconds()) / 1e3)
}

func (s *LatencyStats) RecordMicros(us float64) {
	if s.Count == 0 {
		s.Min, s.Max = us, us
	} else {
		if us < s.Min {
			s.Min = us
		}
		if us > s.Max {
			s.Max = us
		}
	}
	s.Count++
	s.Sum += us
	s.samples = append(s.samples, us)
}

// Average returns false when nothing was recorded.
func (s *LatencyStats) Average() (float64, bool) {
	if s.Count == 0 {
		return 0, false
	}
	return s.Sum / float64(s.Count), true
}

// Percentile uses the nearest-rank method over the recorded samples.
func (s *LatencyStats) Percentile(p float64) (float64, bool) {
	if len(s.samples) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(s.samples))
	copy(sorted, s.samples)
	sort.Float64s(sorted)
	return pct(sorted, p), true
}

func pct(sorted []float64, p float64) float64 {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
