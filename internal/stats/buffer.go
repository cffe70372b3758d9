package stats

import (
	"time"

	"skyfeed/internal/types"
)

// MaxRunGap bounds the inter-sample interval credited to the wind run
// integral. A station outage longer than this contributes no distance for
// the silent span rather than a single huge rectangle.
const MaxRunGap = 15 * time.Minute

// FieldSpec describes which statistics apply to one tracked field. The
// buffer's field table is built once at startup from configuration; packet
// dispatch is a map lookup, not dynamic discovery.
type FieldSpec struct {
	// HiLo tracks day-scoped and lifetime extrema.
	HiLo bool
	// Trend, when nonzero, keeps a trend window with this lookback horizon.
	Trend time.Duration
	// DaySum accumulates the field into a day-boundary accumulator.
	DaySum bool
	// Wind additionally feeds the daily wind vector and the wind run
	// integral. Set only on windSpeed.
	Wind bool
	// AvgWindow, with Wind, sizes the running-average window whose day
	// maximum is tracked alongside the instantaneous gust extreme.
	AvgWindow time.Duration
}

// DefaultTable returns the standard field table for a clientraw feed:
// the tracked observations, which get extrema, which keep trend windows,
// and which accumulate across the day.
//
// windHorizon bounds the windSpeed window (it must cover the longest gust /
// average-speed period queried at publish time); trendHorizon bounds the
// slow trend fields (barometer, temperature, humidity, humidex);
// avgSpeedWindow sizes the running wind average whose day maximum is kept.
func DefaultTable(windHorizon, trendHorizon, avgSpeedWindow time.Duration) map[string]FieldSpec {
	return map[string]FieldSpec{
		types.FieldOutTemp:     {HiLo: true, Trend: trendHorizon},
		types.FieldInTemp:      {HiLo: true},
		types.FieldOutHumidity: {HiLo: true, Trend: trendHorizon},
		types.FieldBarometer:   {HiLo: true, Trend: trendHorizon},
		types.FieldHumidex:     {HiLo: true, Trend: trendHorizon},
		types.FieldWindChill:   {HiLo: true},
		types.FieldHeatIndex:   {HiLo: true},
		types.FieldAppTemp:     {HiLo: true},
		types.FieldDewpoint:    {HiLo: true},
		types.FieldWindSpeed:   {HiLo: true, Trend: windHorizon, Wind: true, AvgWindow: avgSpeedWindow},
		types.FieldWindDir:     {},
		types.FieldRain:        {DaySum: true},
		types.FieldRainRate:    {HiLo: true},
	}
}

// fieldState bundles the live statistics for one tracked field.
type fieldState struct {
	spec   FieldSpec
	scalar Scalar
	trend  *TrendWindow
	day    *DayAccumulator
}

// Buffer is the aggregation buffer: the sole mutable state the engine keeps
// between publishes. It owns one Scalar per tracked field, plus trend
// windows, day accumulators, the daily wind vector and the wind run
// integral as the field table dictates.
//
// Apply must only ever be called from the publishing worker goroutine with
// packets already converted to the canonical unit system. The buffer has no
// concurrent-mutation contract and no locks.
type Buffer struct {
	table  map[string]FieldSpec
	fields map[string]*fieldState

	wind          Vector
	windRun       DayAccumulator
	lastWind      *Extreme
	dayMaxAvgWind *Extreme

	resetHour int
	loc       *time.Location
	lastReset time.Time
}

// NewBuffer creates a buffer with the given field table, daily reset hour
// and location. now anchors the initial day boundary so the first packet of
// a mid-day start does not trigger a spurious rollover.
func NewBuffer(table map[string]FieldSpec, resetHour int, loc *time.Location, now time.Time) *Buffer {
	b := &Buffer{
		table:     table,
		fields:    make(map[string]*fieldState, len(table)),
		resetHour: resetHour,
		loc:       loc,
		lastReset: DayBoundary(now, resetHour, loc),
	}
	b.windRun.LastReset = b.lastReset
	for name, spec := range table {
		st := &fieldState{spec: spec}
		if spec.Trend > 0 {
			st.trend = NewTrendWindow(spec.Trend)
		}
		if spec.DaySum {
			st.day = &DayAccumulator{LastReset: b.lastReset}
		}
		b.fields[name] = st
	}
	return b
}

// Apply folds one canonical-unit packet into the buffer. Untracked fields
// are ignored; nil values leave every statistic for that field untouched.
// The day-boundary check runs before any accumulator update. Returns true
// when the packet crossed the day boundary.
func (b *Buffer) Apply(pkt types.Packet) bool {
	ts := pkt.Timestamp()
	rolled := b.CheckRollover(ts)

	for name, st := range b.fields {
		v, ok := pkt.Value(name)
		if !ok {
			continue
		}
		st.scalar.Add(v, pkt.Time, st.spec.HiLo)
		if st.trend != nil {
			st.trend.Add(pkt.Time, v)
		}
		if st.day != nil {
			st.day.Add(v)
		}
		if st.spec.Wind {
			b.applyWind(st, v, pkt.Ptr(types.FieldWindDir), pkt.Time)
		}
	}
	return rolled
}

// applyWind feeds the daily vector and integrates the wind run using the
// actual inter-sample interval (left rectangle: the previous speed is held
// over the gap). Nil directions are excluded from the vector; the speed
// sample itself already fed the scalar statistic. The day maximum of the
// windowed average speed is tracked here too, distinct from the gust
// extreme the scalar keeps.
func (b *Buffer) applyWind(st *fieldState, speed float64, dir *float64, ts int64) {
	b.wind.Add(speed, dir)
	if b.lastWind != nil && ts > b.lastWind.Time {
		dt := ts - b.lastWind.Time
		if dt <= int64(MaxRunGap/time.Second) {
			b.windRun.Add(b.lastWind.Value * float64(dt))
		}
	}
	if b.lastWind == nil || ts >= b.lastWind.Time {
		b.lastWind = &Extreme{Value: speed, Time: ts}
	}
	if st.trend != nil && st.spec.AvgWindow > 0 {
		if avg, ok := st.trend.AvgSince(ts, st.spec.AvgWindow); ok {
			if b.dayMaxAvgWind == nil || avg > b.dayMaxAvgWind.Value {
				b.dayMaxAvgWind = &Extreme{Value: avg, Time: ts}
			}
		}
	}
}

// CheckRollover zeroes all day-scoped state exactly once when now has
// crossed the configured reset boundary. A multi-day gap still yields a
// single reset, to the most recent boundary. The boundary never moves
// backward, so out-of-order timestamps cannot re-reset.
func (b *Buffer) CheckRollover(now time.Time) bool {
	boundary := DayBoundary(now, b.resetHour, b.loc)
	if !b.lastReset.Before(boundary) {
		return false
	}
	for _, st := range b.fields {
		st.scalar.DayReset()
		if st.day != nil {
			st.day.Sum = 0
			st.day.LastReset = boundary
		}
	}
	b.wind.DayReset()
	b.windRun.Sum = 0
	b.windRun.LastReset = boundary
	b.dayMaxAvgWind = nil
	b.lastReset = boundary
	return true
}

// SeedDaySums primes the day accumulators (and the wind run integral, in
// meters) from persisted history so a restart mid-day does not report zero
// totals. Unknown field names are ignored.
func (b *Buffer) SeedDaySums(sums map[string]float64, windRunMeters float64, asOf time.Time) {
	boundary := DayBoundary(asOf, b.resetHour, b.loc)
	for name, sum := range sums {
		st, ok := b.fields[name]
		if !ok || st.day == nil {
			continue
		}
		st.day.Seed(sum, boundary)
	}
	if windRunMeters > 0 {
		b.windRun.Seed(windRunMeters, boundary)
	}
}

// LastReset returns the boundary of the current accumulation day.
func (b *Buffer) LastReset() time.Time { return b.lastReset }
