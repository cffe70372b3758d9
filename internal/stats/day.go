package stats

import "time"

// DayBoundary returns the most recent daily reset boundary at or before t,
// for the given reset hour in the given location. A reset hour of 0 is plain
// midnight; rain-day conventions commonly use 9.
func DayBoundary(t time.Time, resetHour int, loc *time.Location) time.Time {
	lt := t.In(loc)
	b := time.Date(lt.Year(), lt.Month(), lt.Day(), resetHour, 0, 0, 0, loc)
	if b.After(lt) {
		b = b.AddDate(0, 0, -1)
	}
	return b
}

// DayAccumulator is a running sum that zeroes when the daily reset boundary
// is crossed. For additive fields (rain, wind run) the sum is monotonically
// non-decreasing between resets.
type DayAccumulator struct {
	Sum       float64
	LastReset time.Time
}

// Add folds a non-negative increment into the day sum.
func (d *DayAccumulator) Add(v float64) {
	d.Sum += v
}

// Seed replaces the sum with a value recovered from persisted history, so a
// process restart mid-day does not zero valid accumulation. asOf records the
// boundary the seed was computed against.
func (d *DayAccumulator) Seed(sum float64, asOf time.Time) {
	d.Sum = sum
	d.LastReset = asOf
}

// RolloverIfDue zeroes the sum when now has crossed into a new day relative
// to LastReset. Exactly one reset happens per crossing regardless of how many
// days the gap spans: the accumulator jumps straight to the most recent
// boundary. The reset never moves backward, so replayed or skewed timestamps
// from the past cannot re-trigger it.
func (d *DayAccumulator) RolloverIfDue(now time.Time, resetHour int, loc *time.Location) bool {
	b := DayBoundary(now, resetHour, loc)
	if !d.LastReset.Before(b) {
		return false
	}
	d.Sum = 0
	d.LastReset = b
	return true
}
