// Package record renders the fixed-position clientraw status record: 175
// space-separated tokens, preamble "12345", terminator "!!EOR!!". Position
// is meaning; a field whose inputs are unavailable renders its documented
// placeholder rather than shifting or omitting the position. Formatting is
// deterministic and locale-independent: the same snapshot, derived values
// and packet always produce byte-identical output.
//
// The schema is external and versioned by the dashboard ecosystem; this
// package guarantees ordering, precision and placeholders, nothing more.
// Positions this feed deliberately never populates (per-hour wind/temp/rain
// columns, lightning, battery banks, Current Cost channels) render their
// conventional idle values.
package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"skyfeed/internal/derive"
	"skyfeed/internal/stats"
	"skyfeed/internal/types"
)

// Terminator closes every record; dashboards use it to detect truncation.
const Terminator = "!!EOR!!"

// preamble opens every record.
const preamble = "12345"

// FieldCount is the fixed number of tokens in a record.
const FieldCount = 175

// WindDirPolicy selects what to emit for wind direction when the current
// packet carries none.
type WindDirPolicy string

const (
	// WindDirLast emits the last known direction.
	WindDirLast WindDirPolicy = "last"
	// WindDirZero emits the schema sentinel 0.
	WindDirZero WindDirPolicy = "zero"
)

// Config carries the station constants and window periods the formatter
// needs. Windows must not exceed the buffer's wind trend horizon or the
// corresponding tokens degrade to their placeholders.
type Config struct {
	StationName string
	Latitude    float64
	Longitude   float64
	HasLocation bool

	AvgSpeedWindow time.Duration // token 1; conventionally 5 minutes
	GustWindow     time.Duration // token 2; conventionally 5 minutes
	TrendPeriod    time.Duration // tokens 50/143/144/145; conventionally 20 minutes

	DayResetHour int
	WindDirNull  WindDirPolicy
	Location     *time.Location
}

// Formatter renders records. It is stateless and safe for reuse across
// ticks; it is not called concurrently.
type Formatter struct {
	cfg Config
}

// NewFormatter creates a Formatter, defaulting any zero-valued windows and
// the time location.
func NewFormatter(cfg Config) *Formatter {
	if cfg.AvgSpeedWindow == 0 {
		cfg.AvgSpeedWindow = 5 * time.Minute
	}
	if cfg.GustWindow == 0 {
		cfg.GustWindow = 5 * time.Minute
	}
	if cfg.TrendPeriod == 0 {
		cfg.TrendPeriod = 20 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WindDirNull == "" {
		cfg.WindDirNull = WindDirLast
	}
	return &Formatter{cfg: cfg}
}

// Format renders one record from the buffer snapshot, the derived values,
// the latest cached packet (canonical units) and the history seeds.
func (f *Formatter) Format(snap stats.Snapshot, d derive.Derived, pkt types.Packet, seeds types.Seeds) string {
	now := pkt.Timestamp().In(f.cfg.Location)
	ts := pkt.Time
	wind := snap.Field(types.FieldWindSpeed)

	b := newBuilder()

	// 000 preamble
	b.raw(preamble)
	// 001 average wind speed (knots) over the configured window
	b.num(knots(windowAvg(wind, ts, f.cfg.AvgSpeedWindow)), 1)
	// 002 gust (knots) over the configured window
	b.num(knots(windowMax(wind, ts, f.cfg.GustWindow)), 1)
	// 003 wind direction (degrees)
	b.num(f.windDir(snap, pkt), 0)
	// 004-006 outside temperature (C), humidity (%), barometer (hPa)
	b.num(pkt.Ptr(types.FieldOutTemp), 1)
	b.num(pkt.Ptr(types.FieldOutHumidity), 1)
	b.num(pkt.Ptr(types.FieldBarometer), 1)
	// 007 day rain (mm)
	dayRain := snap.Field(types.FieldRain).DaySum
	b.num(dayRain, 1)
	// 008-009 month and year rain (mm): archive seed plus today's sum
	b.num(plus(seeds.MonthRainMM, dayRain), 1)
	b.num(plus(seeds.YearRainMM, dayRain), 1)
	// 010 rain rate (mm/min, not mm/h)
	b.num(scale(pkt.Ptr(types.FieldRainRate), 1.0/60.0), 1)
	// 011 day maximum rain rate (mm/min)
	b.num(scale(extremeValue(snap.Field(types.FieldRainRate).DayMax), 1.0/60.0), 1)
	// 012-013 inside temperature (C), humidity (%)
	b.num(pkt.Ptr(types.FieldInTemp), 1)
	b.num(pkt.Ptr(types.FieldInHumidity), 1)
	// 014 soil temperature (C)
	b.num(pkt.Ptr(types.FieldSoilTemp), 1)
	// 015 forecast icon: not populated by this feed
	b.raw("0")
	// 016-018 WMR968 extra sensors: never populated
	b.zeros(3, 1)
	// 019 yesterday rain (mm)
	b.num(seeds.YesterdayRainMM, 1)
	// 020-025 extra temperature sensors 1-6 (C)
	for i := 1; i <= 6; i++ {
		b.num(pkt.Ptr(fmt.Sprintf("extraTemp%d", i)), 1)
	}
	// 026-028 extra humidity sensors 1-3 (%)
	for i := 1; i <= 3; i++ {
		b.num(pkt.Ptr(fmt.Sprintf("extraHumidity%d", i)), 1)
	}
	// 029-031 hour, minute, second (station-local)
	b.raw(now.Format("15"))
	b.raw(now.Format("04"))
	b.raw(now.Format("05"))
	// 032 station name with timestamp suffix
	b.raw(f.stationToken(now))
	// 033 lightning count: never populated
	b.raw("0")
	// 034 solar percent of clear-sky maximum
	b.num(d.SolarPercent, 0)
	// 035-036 day and month, no leading zeros
	b.raw(strconv.Itoa(now.Day()))
	b.raw(strconv.Itoa(int(now.Month())))
	// 037-043 battery banks: reported full
	for i := 0; i < 7; i++ {
		b.raw("100")
	}
	// 044-045 wind chill, humidex (C)
	b.num(pick(pkt.Ptr(types.FieldWindChill), d.WindChill), 1)
	b.num(pick(pkt.Ptr(types.FieldHumidex), d.Humidex), 1)
	// 046-047 day maximum and minimum temperature (C)
	b.num(extremeValue(snap.Field(types.FieldOutTemp).DayMax), 1)
	b.num(extremeValue(snap.Field(types.FieldOutTemp).DayMin), 1)
	// 048-049 icon type and weather description: not populated
	b.raw("0")
	b.raw("---")
	// 050 barometer trend over the configured period (hPa)
	b.num(trendDelta(snap.Field(types.FieldBarometer), ts, f.cfg.TrendPeriod), 1)
	// 051-070 per-hour wind speed columns: never populated
	b.zeros(20, 1)
	// 071 day maximum gust (knots)
	b.num(knots(extremeValue(wind.DayMax)), 1)
	// 072 dewpoint (C)
	b.num(pick(pkt.Ptr(types.FieldDewpoint), d.Dewpoint), 1)
	// 073 cloud base (feet)
	b.num(feet(pick(pkt.Ptr(types.FieldCloudBase), d.CloudBaseM)), 1)
	// 074 date, day/month/year without leading zeros
	b.raw(fmt.Sprintf("%d/%d/%d", now.Day(), int(now.Month()), now.Year()))
	// 075-076 day maximum and minimum humidex (C)
	b.num(extremeValue(snap.Field(types.FieldHumidex).DayMax), 1)
	b.num(extremeValue(snap.Field(types.FieldHumidex).DayMin), 1)
	// 077-078 day maximum and minimum wind chill (C)
	b.num(extremeValue(snap.Field(types.FieldWindChill).DayMax), 1)
	b.num(extremeValue(snap.Field(types.FieldWindChill).DayMin), 1)
	// 079 UV index
	b.num(pkt.Ptr(types.FieldUV), 1)
	// 080-109 per-hour wind, temperature and rain columns: never populated
	b.zeros(30, 1)
	// 110-111 day maximum and minimum heat index (C)
	b.num(extremeValue(snap.Field(types.FieldHeatIndex).DayMax), 1)
	b.num(extremeValue(snap.Field(types.FieldHeatIndex).DayMin), 1)
	// 112 heat index (C)
	b.num(pick(pkt.Ptr(types.FieldHeatIndex), d.HeatIndex), 1)
	// 113 day maximum of the windowed average speed (knots)
	b.num(knots(extremeValue(snap.WindDayMaxAvg)), 1)
	// 114-116 lightning: never populated
	b.raw("0")
	b.raw("00:00")
	b.raw("---")
	// 117 day average wind direction (degrees, vector)
	b.num(snap.WindAvgDir, 0)
	// 118-119 storm distance and bearing: never populated
	b.zeros(2, 1)
	// 120-121 extra temperature sensors 7-8 (C)
	b.num(pkt.Ptr("extraTemp7"), 1)
	b.num(pkt.Ptr("extraTemp8"), 1)
	// 122-126 extra humidity sensors 4-8 (%)
	for i := 4; i <= 8; i++ {
		b.num(pkt.Ptr(fmt.Sprintf("extraHumidity%d", i)), 1)
	}
	// 127 solar radiation (W/m²)
	b.num(pkt.Ptr(types.FieldRadiation), 1)
	// 128-129 day maximum and minimum inside temperature (C)
	b.num(extremeValue(snap.Field(types.FieldInTemp).DayMax), 1)
	b.num(extremeValue(snap.Field(types.FieldInTemp).DayMin), 1)
	// 130 apparent temperature (C)
	b.num(d.AppTemp, 1)
	// 131-132 day maximum and minimum barometer (hPa)
	b.num(extremeValue(snap.Field(types.FieldBarometer).DayMax), 1)
	b.num(extremeValue(snap.Field(types.FieldBarometer).DayMin), 1)
	// 133 maximum gust in the last hour (knots): archive seed merged with
	// the in-memory window
	hourGust, hourGustTime := f.hourGust(wind, ts, seeds)
	b.num(knots(hourGust), 1)
	// 134 time of the last-hour maximum gust
	b.raw(f.timeToken(hourGustTime, now))
	// 135 time of the day maximum gust
	b.raw(f.timeToken(extremeTime(wind.DayMax, f.cfg.Location), now))
	// 136-137 day maximum and minimum apparent temperature (C)
	b.num(extremeValue(snap.Field(types.FieldAppTemp).DayMax), 1)
	b.num(extremeValue(snap.Field(types.FieldAppTemp).DayMin), 1)
	// 138-139 day maximum and minimum dewpoint (C)
	b.num(extremeValue(snap.Field(types.FieldDewpoint).DayMax), 1)
	b.num(extremeValue(snap.Field(types.FieldDewpoint).DayMin), 1)
	// 140 maximum gust in the last minute (knots)
	b.num(knots(windowMax(wind, ts, time.Minute)), 1)
	// 141 year
	b.raw(strconv.Itoa(now.Year()))
	// 142 THSWS: never populated
	b.zeros(1, 1)
	// 143-145 temperature, humidity and humidex trend signs
	b.raw(trendSign(snap.Field(types.FieldOutTemp), ts, f.cfg.TrendPeriod))
	b.raw(trendSign(snap.Field(types.FieldOutHumidity), ts, f.cfg.TrendPeriod))
	b.raw(trendSign(snap.Field(types.FieldHumidex), ts, f.cfg.TrendPeriod))
	// 146-155 per-hour wind direction columns: never populated
	b.zeros(10, 1)
	// 156 leaf wetness
	b.num(pkt.Ptr(types.FieldLeafWet), 1)
	// 157 soil moisture (255 = no sensor)
	b.numDefault(pkt.Ptr(types.FieldSoilMoist), 1, "255.0")
	// 158 ten-minute average wind speed (knots)
	b.num(knots(windowAvg(wind, ts, 10*time.Minute)), 1)
	// 159 wet bulb temperature (C)
	b.num(d.WetBulb, 1)
	// 160-161 latitude and longitude (degrees; longitude sign flipped,
	// west positive, per the schema's convention)
	if f.cfg.HasLocation {
		lat := f.cfg.Latitude
		lon := -f.cfg.Longitude
		b.num(&lat, 1)
		b.num(&lon, 1)
	} else {
		b.zeros(2, 1)
	}
	// 162 rain since the 9am reset (mm); populated only when this feed's
	// day boundary is the 9am convention
	if f.cfg.DayResetHour == 9 {
		b.num(dayRain, 1)
	} else {
		b.zeros(1, 1)
	}
	// 163-164 day maximum and minimum humidity (%)
	b.num(extremeValue(snap.Field(types.FieldOutHumidity).DayMax), 1)
	b.num(extremeValue(snap.Field(types.FieldOutHumidity).DayMin), 1)
	// 165 rain since the midnight reset (mm)
	if f.cfg.DayResetHour == 0 {
		b.num(dayRain, 1)
	} else {
		b.zeros(1, 1)
	}
	// 166 time of the day minimum wind chill
	b.raw(f.timeToken(extremeTime(snap.Field(types.FieldWindChill).DayMin, f.cfg.Location), now))
	// 167-172 Current Cost channels: never populated
	b.zeros(6, 1)
	// 173 day wind run (km)
	run := snap.WindRunMeters / 1000.0
	b.num(&run, 1)
	// 174 terminator
	b.raw(Terminator)

	return strings.Join(b.tokens, " ")
}

// windDir resolves token 003 per the null-direction policy.
func (f *Formatter) windDir(snap stats.Snapshot, pkt types.Packet) *float64 {
	if v := pkt.Ptr(types.FieldWindDir); v != nil {
		return v
	}
	if f.cfg.WindDirNull == WindDirLast {
		return snap.Field(types.FieldWindDir).LastValue()
	}
	return nil
}

// stationToken renders token 032: the station name, spaces stripped, with
// an HH:MM:SS suffix.
func (f *Formatter) stationToken(now time.Time) string {
	name := strings.ReplaceAll(f.cfg.StationName, " ", "")
	if name == "" {
		name = "station"
	}
	return name + "-" + now.Format("15:04:05")
}

// timeToken renders an HH:MM token, falling back to the record time when
// the statistic has no timestamp yet.
func (f *Formatter) timeToken(t *time.Time, now time.Time) string {
	if t == nil {
		return now.Format("15:04")
	}
	return t.In(f.cfg.Location).Format("15:04")
}

// hourGust merges the archive's trailing-hour gust with the in-memory
// window and reports the larger, with its timestamp when known.
func (f *Formatter) hourGust(wind stats.FieldView, ts int64, seeds types.Seeds) (*float64, *time.Time) {
	var best *float64
	var when *time.Time
	if wind.Trend != nil {
		if m, ok := wind.Trend.MaxSince(ts, time.Hour); ok {
			v := m.Value
			t := time.Unix(m.Time, 0)
			best, when = &v, &t
		}
	}
	if seeds.HourGustMps != nil && (best == nil || *seeds.HourGustMps > *best) {
		best, when = seeds.HourGustMps, nil
	}
	return best, when
}
