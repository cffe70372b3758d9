package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"skyfeed/internal/stats"
	"skyfeed/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx, so the
// store works inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore reads seed aggregates from a canonical-unit archive table:
//
//	archive(ts bigint primary key, interval_secs int, out_temp, out_humidity,
//	        barometer, wind_speed, wind_gust, wind_dir, rain, rain_rate,
//	        in_temp, dewpoint, radiation, uv double precision)
//
// ts is epoch seconds for the end of the archive interval; value columns are
// nullable, one per sensor.
type PostgresStore struct {
	db        DBTX
	resetHour int
	loc       *time.Location
}

// NewPostgresStore creates a store computing day boundaries at resetHour in
// loc, matching the aggregation buffer's rollover schedule.
func NewPostgresStore(db DBTX, resetHour int, loc *time.Location) *PostgresStore {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresStore{db: db, resetHour: resetHour, loc: loc}
}

// Seeds assembles startup aggregates from the archive. Each component query
// degrades independently: no rows means a zero aggregate, and only genuine
// query failures are returned.
func (s *PostgresStore) Seeds(ctx context.Context, now time.Time) (types.Seeds, error) {
	dayStart := stats.DayBoundary(now, s.resetHour, s.loc)
	prevDayStart := stats.DayBoundary(dayStart.Add(-time.Second), s.resetHour, s.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, s.loc)

	seeds := types.Seeds{DaySums: make(map[string]float64)}

	dayRain, err := s.sumSince(ctx, "rain", dayStart)
	if err != nil {
		return seeds, err
	}
	if dayRain != nil {
		seeds.DaySums[types.FieldRain] = *dayRain
	}

	windRun, err := s.windRunSince(ctx, dayStart)
	if err != nil {
		return seeds, err
	}
	seeds.WindRunMeters = windRun

	if seeds.YesterdayRainMM, err = s.sumBetween(ctx, "rain", prevDayStart, dayStart); err != nil {
		return seeds, err
	}
	// Month and year totals stop at the day boundary: today's archived
	// rain is already carried by the day-sum seed, and the record adds the
	// live day sum on top of these.
	if seeds.MonthRainMM, err = s.sumBetween(ctx, "rain", monthStart, dayStart); err != nil {
		return seeds, err
	}
	if seeds.YearRainMM, err = s.sumBetween(ctx, "rain", yearStart, dayStart); err != nil {
		return seeds, err
	}
	if seeds.HourGustMps, err = s.maxSince(ctx, "wind_gust", now.Add(-time.Hour)); err != nil {
		return seeds, err
	}
	return seeds, nil
}

// archiveColumns is the column order LatestPacket scans; packetFields maps
// each value column to its packet field name.
const archiveColumns = `ts, out_temp, out_humidity, barometer, wind_speed,
	wind_gust, wind_dir, rain_rate, in_temp, dewpoint, radiation, uv`

var packetFields = []string{
	types.FieldOutTemp, types.FieldOutHumidity, types.FieldBarometer,
	types.FieldWindSpeed, types.FieldWindGust, types.FieldWindDir,
	types.FieldRainRate, types.FieldInTemp, types.FieldDewpoint,
	types.FieldRadiation, types.FieldUV,
}

// LatestPacket returns the newest archive row as a packet.
func (s *PostgresStore) LatestPacket(ctx context.Context) (types.Packet, bool, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+archiveColumns+` FROM archive ORDER BY ts DESC LIMIT 1`)

	var ts int64
	values := make([]*float64, len(packetFields))
	dest := make([]any, 0, len(values)+1)
	dest = append(dest, &ts)
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Packet{}, false, nil
		}
		return types.Packet{}, false, fmt.Errorf("history: latest archive row: %w", err)
	}

	pkt := types.Packet{
		Time:   ts,
		Units:  types.UnitsCanonical,
		Fields: make(map[string]*float64, len(packetFields)),
	}
	for i, name := range packetFields {
		pkt.Fields[name] = values[i]
	}
	return pkt, true, nil
}

func (s *PostgresStore) sumSince(ctx context.Context, column string, since time.Time) (*float64, error) {
	return s.aggregate(ctx,
		fmt.Sprintf(`SELECT SUM(%s) FROM archive WHERE ts > $1`, column),
		column, since.Unix())
}

func (s *PostgresStore) sumBetween(ctx context.Context, column string, from, to time.Time) (*float64, error) {
	return s.aggregate(ctx,
		fmt.Sprintf(`SELECT SUM(%s) FROM archive WHERE ts > $1 AND ts <= $2`, column),
		column, from.Unix(), to.Unix())
}

func (s *PostgresStore) maxSince(ctx context.Context, column string, since time.Time) (*float64, error) {
	return s.aggregate(ctx,
		fmt.Sprintf(`SELECT MAX(%s) FROM archive WHERE ts > $1`, column),
		column, since.Unix())
}

// aggregate runs a single-value aggregate query; SQL NULL (no matching
// rows, or all-NULL column) comes back as a nil pointer.
func (s *PostgresStore) aggregate(ctx context.Context, sql, column string, args ...any) (*float64, error) {
	var v *float64
	if err := s.db.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: aggregate %s: %w", column, err)
	}
	return v, nil
}

// windRunSince integrates archived wind speed over each interval to recover
// the day's wind run in meters.
func (s *PostgresStore) windRunSince(ctx context.Context, since time.Time) (float64, error) {
	var v *float64
	err := s.db.QueryRow(ctx,
		`SELECT SUM(wind_speed * interval_secs) FROM archive
		 WHERE ts > $1 AND wind_speed IS NOT NULL`,
		since.Unix()).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("history: wind run: %w", err)
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}
