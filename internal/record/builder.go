package record

import (
	"strconv"
	"time"

	"skyfeed/internal/stats"
	"skyfeed/internal/units"
)

// builder accumulates record tokens in order.
type builder struct {
	tokens []string
}

func newBuilder() *builder {
	return &builder{tokens: make([]string, 0, FieldCount)}
}

// raw appends a pre-formatted token.
func (b *builder) raw(s string) {
	b.tokens = append(b.tokens, s)
}

// num appends a numeric token rounded to places decimals, or the schema's
// generic placeholder "0.0" when the value is unavailable.
func (b *builder) num(v *float64, places int) {
	b.numDefault(v, places, "0.0")
}

// numDefault is num with a field-specific placeholder.
func (b *builder) numDefault(v *float64, places int, placeholder string) {
	if v == nil {
		b.tokens = append(b.tokens, placeholder)
		return
	}
	b.tokens = append(b.tokens, strconv.FormatFloat(*v, 'f', places, 64))
}

// zeros appends n unavailable numeric tokens.
func (b *builder) zeros(n, places int) {
	for i := 0; i < n; i++ {
		b.num(nil, places)
	}
}

// Helpers shared by the token mapping. All take and return nil-able values
// so missing inputs propagate to placeholders instead of zeros.

func knots(v *float64) *float64 {
	if v == nil {
		return nil
	}
	k := units.MpsToKnots(*v)
	return &k
}

func feet(v *float64) *float64 {
	if v == nil {
		return nil
	}
	ft := units.MetersToFeet(*v)
	return &ft
}

func scale(v *float64, by float64) *float64 {
	if v == nil {
		return nil
	}
	s := *v * by
	return &s
}

func plus(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	sum := *a + *b
	return &sum
}

// pick returns the first non-nil value.
func pick(vs ...*float64) *float64 {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

func extremeValue(e *stats.Extreme) *float64 {
	if e == nil {
		return nil
	}
	v := e.Value
	return &v
}

func extremeTime(e *stats.Extreme, loc *time.Location) *time.Time {
	if e == nil {
		return nil
	}
	t := time.Unix(e.Time, 0).In(loc)
	return &t
}

func windowAvg(f stats.FieldView, ts int64, age time.Duration) *float64 {
	if f.Trend == nil {
		return nil
	}
	v, ok := f.Trend.AvgSince(ts, age)
	if !ok {
		return nil
	}
	return &v
}

func windowMax(f stats.FieldView, ts int64, age time.Duration) *float64 {
	if f.Trend == nil {
		return nil
	}
	m, ok := f.Trend.MaxSince(ts, age)
	if !ok {
		return nil
	}
	v := m.Value
	return &v
}

func trendDelta(f stats.FieldView, ts int64, period time.Duration) *float64 {
	if f.Trend == nil {
		return nil
	}
	d, ok := f.Trend.Delta(ts, period)
	if !ok {
		return nil
	}
	return &d
}

// trendSign renders the schema's trend-direction tokens: "1.0" rising,
// "-1.0" falling, "0.0" steady or unavailable.
func trendSign(f stats.FieldView, ts int64, period time.Duration) string {
	d := trendDelta(f, ts, period)
	switch {
	case d == nil || *d == 0:
		return "0.0"
	case *d > 0:
		return "1.0"
	default:
		return "-1.0"
	}
}
