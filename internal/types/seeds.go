package types

// Seeds carries aggregates recovered from persisted history. Day-scoped
// values re-prime the aggregation buffer after a restart; the longer-horizon
// values cover spans the in-memory buffer never holds (yesterday, month,
// year, the archive side of the last hour). Nil means the history store had
// no answer; the formatter falls back to sentinels.
type Seeds struct {
	// DaySums maps field name to the sum since the current day boundary
	// (canonical units), used to seed the buffer's day accumulators.
	DaySums map[string]float64

	// WindRunMeters is the day's wind run recovered from history.
	WindRunMeters float64

	YesterdayRainMM *float64
	MonthRainMM     *float64
	YearRainMM      *float64

	// HourGustMps is the maximum gust in the trailing hour as recorded in
	// the archive, merged at format time with the in-memory window.
	HourGustMps *float64
}
