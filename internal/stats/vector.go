package stats

import "math"

// Vector accumulates the speed-weighted wind direction components over the
// current day. Average direction is atan2 of the component sums, normalized
// to [0,360) compass degrees.
//
// A nil direction with a non-nil speed is excluded from the component sums
// (there is nothing to point the speed at), but the caller still feeds the
// speed sample to the scalar windSpeed statistic.
type Vector struct {
	XSum  float64 // Σ speed·sin(dir)
	YSum  float64 // Σ speed·cos(dir)
	Speed float64 // Σ speed over vector-eligible samples
	Count int64
}

// Add folds one wind sample into the daily vector. Samples with a nil
// direction are ignored.
func (v *Vector) Add(speed float64, dir *float64) {
	if dir == nil {
		return
	}
	rad := *dir * math.Pi / 180.0
	v.XSum += speed * math.Sin(rad)
	v.YSum += speed * math.Cos(rad)
	v.Speed += speed
	v.Count++
}

// AvgDir returns the speed-weighted average direction in compass degrees
// [0,360), or false when no directional samples have been seen today.
// Calm samples (all speeds zero) also yield false: a vector of zero length
// has no direction.
func (v *Vector) AvgDir() (float64, bool) {
	if v.Count == 0 || (v.XSum == 0 && v.YSum == 0) {
		return 0, false
	}
	deg := math.Atan2(v.XSum, v.YSum) * 180.0 / math.Pi
	if deg < 0 {
		deg += 360.0
	}
	return deg, true
}

// DayReset zeroes the daily component sums.
func (v *Vector) DayReset() {
	*v = Vector{}
}
