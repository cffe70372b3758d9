package stats

import "time"

// FieldView is the immutable per-field slice of a Snapshot. Pointer members
// are nil when the underlying statistic has seen no samples. The trend
// window, when present, is an independent copy safe to query after the
// buffer has moved on.
type FieldView struct {
	Last   *Extreme
	Min    *Extreme
	Max    *Extreme
	DayMin *Extreme
	DayMax *Extreme
	Avg    *float64
	DaySum *float64
	Trend  *TrendWindow
}

// LastValue returns the most recent value, or nil.
func (f FieldView) LastValue() *float64 {
	if f.Last == nil {
		return nil
	}
	v := f.Last.Value
	return &v
}

// Snapshot is a point-in-time view of the aggregation buffer, taken on each
// publish tick and handed to the derived-field calculator and the record
// formatter. It shares no mutable state with the buffer: formatting the same
// snapshot twice produces byte-identical output.
type Snapshot struct {
	Time      time.Time
	LastReset time.Time
	Fields    map[string]FieldView

	// WindAvgDir is the speed-weighted average wind direction for the
	// current day, nil before the first directional sample.
	WindAvgDir *float64
	// WindRunMeters is the day's time-integrated wind distance.
	WindRunMeters float64
	// WindDayMaxAvg is the day's highest windowed average wind speed,
	// distinct from the instantaneous gust extreme.
	WindDayMaxAvg *Extreme
}

// Field returns the view for a field name; the zero view when untracked.
func (s Snapshot) Field(name string) FieldView {
	return s.Fields[name]
}

// Snapshot captures the buffer state as of now.
func (b *Buffer) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Time:          now,
		LastReset:     b.lastReset,
		Fields:        make(map[string]FieldView, len(b.fields)),
		WindRunMeters: b.windRun.Sum,
	}
	if dir, ok := b.wind.AvgDir(); ok {
		snap.WindAvgDir = &dir
	}
	if b.dayMaxAvgWind != nil {
		e := *b.dayMaxAvgWind
		snap.WindDayMaxAvg = &e
	}
	for name, st := range b.fields {
		view := FieldView{
			Last:   st.scalar.Last,
			Min:    st.scalar.Min,
			Max:    st.scalar.Max,
			DayMin: st.scalar.DayMin,
			DayMax: st.scalar.DayMax,
		}
		if avg, ok := st.scalar.Avg(); ok {
			view.Avg = &avg
		}
		if st.day != nil {
			sum := st.day.Sum
			view.DaySum = &sum
		}
		if st.trend != nil {
			view.Trend = st.trend.clone()
		}
		snap.Fields[name] = view
	}
	return snap
}
