// Package config defines the skyfeed configuration. Configuration is loaded
// once at process start and is immutable thereafter, following 12-Factor
// principles: values come from the OS environment, with a .env file as a
// local-development convenience.
//
// A missing or malformed required value fails startup. Optional features
// (archive database, remote sink, spool, CloudWatch telemetry) degrade: an
// invalid optional value disables the feature with a single warning.
package config

import (
	"time"
)

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Station   StationConfig
	Server    ServerConfig
	Pipeline  PipelineConfig
	Output    OutputConfig
	Database  DatabaseConfig
	Telemetry TelemetryConfig
}

// StationConfig describes the weather station whose packets are aggregated.
type StationConfig struct {
	Name string `envconfig:"STATION_NAME" default:"skyfeed"`

	// Latitude/Longitude/Altitude locate the station for solar-derived
	// observations. All three default to zero; HasLocation reports whether
	// a real position was configured.
	Latitude  float64 `envconfig:"STATION_LATITUDE" default:"0" validate:"gte=-90,lte=90"`
	Longitude float64 `envconfig:"STATION_LONGITUDE" default:"0" validate:"gte=-180,lte=180"`
	AltitudeM float64 `envconfig:"STATION_ALTITUDE_M" default:"0"`

	// ATC is the atmospheric transmission coefficient for the theoretical
	// max solar radiation calculation. Values outside [0.7, 0.91] fall back
	// to the default.
	ATC float64 `envconfig:"STATION_ATC" default:"0.8"`
}

// HasLocation reports whether a station position was configured. A station
// at exactly (0, 0) is treated as unconfigured.
func (s StationConfig) HasLocation() bool {
	return s.Latitude != 0 || s.Longitude != 0
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// PipelineConfig tunes the aggregation and publishing pipeline.
type PipelineConfig struct {
	// MinInterval is the minimum time between published records.
	MinInterval time.Duration `envconfig:"PUBLISH_MIN_INTERVAL" default:"10s" validate:"gte=0"`
	// QueueSize bounds the ingestion queue; overflow drops the newest packet.
	QueueSize int `envconfig:"INGEST_QUEUE_SIZE" default:"64" validate:"gt=0"`
	// CacheMaxAge bounds how long a cached field value substitutes for a
	// missing sensor reading.
	CacheMaxAge time.Duration `envconfig:"CACHE_MAX_AGE" default:"10m" validate:"gt=0"`
	// SinkTimeout bounds each sink delivery per publish tick.
	SinkTimeout time.Duration `envconfig:"SINK_TIMEOUT" default:"10s" validate:"gt=0"`

	// DayResetHour is the local hour at which day statistics reset (0 for
	// midnight, 9 for a 9am climatological day).
	DayResetHour int `envconfig:"DAY_RESET_HOUR" default:"0" validate:"gte=0,lte=23"`
	// Timezone is the IANA zone name for day boundaries and record clock
	// tokens. Empty means UTC.
	Timezone string `envconfig:"STATION_TIMEZONE"`

	// AvgSpeedWindow and GustWindow size the wind history windows behind
	// the average-speed and gust record tokens.
	AvgSpeedWindow time.Duration `envconfig:"AVG_SPEED_WINDOW" default:"5m" validate:"gt=0"`
	GustWindow     time.Duration `envconfig:"GUST_WINDOW" default:"5m" validate:"gt=0"`
	// TrendPeriod is the lookback for temperature/pressure/humidity trends.
	TrendPeriod time.Duration `envconfig:"TREND_PERIOD" default:"20m" validate:"gt=0"`

	// WindDirNull selects what the record reports when no wind direction
	// has been observed: "last" repeats the last known direction, "zero"
	// reports 0.
	WindDirNull string `envconfig:"WIND_DIR_NULL" default:"last" validate:"oneof=last zero"`
}

// OutputConfig selects the publishing sinks. Dir is required; the remote
// and spool sinks are optional.
type OutputConfig struct {
	// LocalSave enables the file sink.
	LocalSave bool   `envconfig:"LOCAL_SAVE" default:"true"`
	Dir       string `envconfig:"OUTPUT_DIR" default:"./out"`
	Filename  string `envconfig:"OUTPUT_FILENAME" default:"clientraw.txt"`

	// RemoteURL, when set, enables POSTing each record to an HTTP endpoint.
	// Parsed at sink construction: a malformed value disables the remote
	// sink with a warning instead of failing startup.
	RemoteURL     string        `envconfig:"REMOTE_URL"`
	RemoteTimeout time.Duration `envconfig:"REMOTE_TIMEOUT" default:"5s" validate:"gt=0"`

	// SpoolPath, when set, enables the compressed record spool.
	SpoolPath string `envconfig:"SPOOL_PATH"`

	// LogSuccess and LogFailure control per-tick delivery logging.
	LogSuccess bool `envconfig:"LOG_SUCCESS" default:"false"`
	LogFailure bool `envconfig:"LOG_FAILURE" default:"true"`
}

// DatabaseConfig holds the optional archive database connection. An empty
// URL disables history seeding; a malformed one is caught by pgxpool at
// connect time and likewise disables seeding with a warning.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`

	// SeedRefreshInterval is how often the month/year rain and hour gust
	// seeds are re-read from the archive.
	SeedRefreshInterval time.Duration `envconfig:"SEED_REFRESH_INTERVAL" default:"5m" validate:"gt=0"`
}

// Enabled reports whether the archive database is configured.
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// TelemetryConfig holds the optional CloudWatch metrics configuration.
type TelemetryConfig struct {
	Enabled bool   `envconfig:"TELEMETRY_ENABLED" default:"false"`
	Region  string `envconfig:"AWS_REGION" default:"us-east-1"`
}
