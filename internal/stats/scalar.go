// Package stats implements the rolling statistical state kept between
// publishes: per-field scalar statistics, the daily wind vector, time-bounded
// trend windows, day-boundary accumulators, and the aggregation buffer that
// owns them. The buffer is exclusively owned by the publishing worker
// goroutine; nothing in this package locks.
package stats

// Extreme records a value together with the time it was observed.
type Extreme struct {
	Value float64
	Time  int64
}

// Scalar holds the running statistics for one observation field.
//
// Min/Max are lifetime-of-buffer extrema: they reset only on process restart.
// DayMin/DayMax reset when the configured day boundary is crossed. Sum/Count
// support simple averaging over the buffer lifetime.
type Scalar struct {
	Last *Extreme

	Min *Extreme
	Max *Extreme

	DayMin *Extreme
	DayMax *Extreme

	Sum   float64
	Count int64
}

// Add folds one sample into the statistic. hilo controls whether extrema are
// tracked for this field. Out-of-order samples still count toward extrema and
// the average but never replace Last.
func (s *Scalar) Add(v float64, ts int64, hilo bool) {
	if s.Last == nil || ts >= s.Last.Time {
		s.Last = &Extreme{Value: v, Time: ts}
	}
	s.Sum += v
	s.Count++
	if !hilo {
		return
	}
	if s.Min == nil || v < s.Min.Value {
		s.Min = &Extreme{Value: v, Time: ts}
	}
	if s.Max == nil || v > s.Max.Value {
		s.Max = &Extreme{Value: v, Time: ts}
	}
	if s.DayMin == nil || v < s.DayMin.Value {
		s.DayMin = &Extreme{Value: v, Time: ts}
	}
	if s.DayMax == nil || v > s.DayMax.Value {
		s.DayMax = &Extreme{Value: v, Time: ts}
	}
}

// Avg returns the lifetime average, or false when no samples have been seen.
func (s *Scalar) Avg() (float64, bool) {
	if s.Count == 0 {
		return 0, false
	}
	return s.Sum / float64(s.Count), true
}

// DayReset clears the day-scoped extrema. Lifetime extrema and the average
// accumulator are untouched.
func (s *Scalar) DayReset() {
	s.DayMin = nil
	s.DayMax = nil
}
