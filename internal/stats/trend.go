package stats

import (
	"sort"
	"time"
)

type sample struct {
	ts int64
	v  float64
}

// TrendWindow keeps a time-ordered sequence of (timestamp, value) samples
// spanning a configured lookback horizon, used to answer "value N ago" by
// nearest-sample lookup and to compute short-window aggregates (gust max,
// average speed).
//
// Pruning happens on every insert, never periodically, so the window stays
// bounded even when samples arrive far apart. One sample at or before the
// horizon cutoff is always retained as the boundary anchor: a lookup at
// exactly now-horizon needs a sample not after that instant to answer.
type TrendWindow struct {
	horizon time.Duration
	samples []sample
}

// NewTrendWindow creates a window with the given lookback horizon.
func NewTrendWindow(horizon time.Duration) *TrendWindow {
	return &TrendWindow{horizon: horizon}
}

// Add appends a sample and prunes entries older than the horizon. Samples
// older than the newest retained timestamp are dropped rather than inserted
// out of order; extrema and averages already saw them via the scalar path.
func (w *TrendWindow) Add(ts int64, v float64) {
	if n := len(w.samples); n > 0 && ts < w.samples[n-1].ts {
		return
	}
	w.samples = append(w.samples, sample{ts: ts, v: v})
	w.prune(ts)
}

// prune drops samples older than cutoff, keeping the newest sample at or
// before cutoff as the boundary anchor.
func (w *TrendWindow) prune(now int64) {
	cutoff := now - int64(w.horizon/time.Second)
	// Index of the first sample strictly after the cutoff.
	first := sort.Search(len(w.samples), func(i int) bool {
		return w.samples[i].ts > cutoff
	})
	// Keep one anchor at or before the cutoff when one exists.
	if first > 0 {
		first--
	}
	if first > 0 {
		w.samples = append(w.samples[:0], w.samples[first:]...)
	}
}

// At returns the value of the sample nearest to but not after target, or
// false when no such sample is retained.
func (w *TrendWindow) At(target int64) (float64, bool) {
	// Index of the first sample strictly after target.
	i := sort.Search(len(w.samples), func(i int) bool {
		return w.samples[i].ts > target
	})
	if i == 0 {
		return 0, false
	}
	return w.samples[i-1].v, true
}

// Delta returns last - value_at(now-period), or false when the window does
// not yet span the period.
func (w *TrendWindow) Delta(now int64, period time.Duration) (float64, bool) {
	if len(w.samples) == 0 {
		return 0, false
	}
	then, ok := w.At(now - int64(period/time.Second))
	if !ok {
		return 0, false
	}
	return w.samples[len(w.samples)-1].v - then, true
}

// MaxSince returns the maximum sample within the last age seconds of now,
// with its timestamp, or false when the range holds no samples.
func (w *TrendWindow) MaxSince(now int64, age time.Duration) (Extreme, bool) {
	born := now - int64(age/time.Second)
	var best Extreme
	found := false
	for _, s := range w.samples {
		if s.ts < born {
			continue
		}
		if !found || s.v > best.Value {
			best = Extreme{Value: s.v, Time: s.ts}
			found = true
		}
	}
	return best, found
}

// AvgSince returns the mean of samples within the last age seconds of now,
// or false when the range holds no samples.
func (w *TrendWindow) AvgSince(now int64, age time.Duration) (float64, bool) {
	born := now - int64(age/time.Second)
	var sum float64
	var n int
	for _, s := range w.samples {
		if s.ts < born {
			continue
		}
		sum += s.v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Spans reports whether the window reaches back at least age seconds from
// now, i.e. whether period-scoped answers are meaningful yet.
func (w *TrendWindow) Spans(now int64, age time.Duration) bool {
	if len(w.samples) == 0 {
		return false
	}
	return w.samples[0].ts <= now-int64(age/time.Second)
}

// Len returns the number of retained samples.
func (w *TrendWindow) Len() int { return len(w.samples) }

// clone returns an independent copy for snapshots.
func (w *TrendWindow) clone() *TrendWindow {
	out := &TrendWindow{horizon: w.horizon}
	out.samples = append(out.samples, w.samples...)
	return out
}
