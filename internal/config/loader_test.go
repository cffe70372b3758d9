package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.MinInterval)
	assert.Equal(t, 64, cfg.Pipeline.QueueSize)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.CacheMaxAge)
	assert.Equal(t, 0, cfg.Pipeline.DayResetHour)
	assert.Equal(t, "last", cfg.Pipeline.WindDirNull)
	assert.Equal(t, "clientraw.txt", cfg.Output.Filename)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.Station.HasLocation())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STATION_NAME", "ridge top")
	t.Setenv("STATION_LATITUDE", "51.5")
	t.Setenv("STATION_LONGITUDE", "-0.12")
	t.Setenv("PUBLISH_MIN_INTERVAL", "30s")
	t.Setenv("DAY_RESET_HOUR", "9")
	t.Setenv("REMOTE_URL", "https://example.com/upload")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ridge top", cfg.Station.Name)
	assert.True(t, cfg.Station.HasLocation())
	assert.Equal(t, 30*time.Second, cfg.Pipeline.MinInterval)
	assert.Equal(t, 9, cfg.Pipeline.DayResetHour)
	assert.Equal(t, "https://example.com/upload", cfg.Output.RemoteURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad environment":   {"APP_ENV", "production"},
		"bad log level":     {"LOG_LEVEL", "chatty"},
		"bad reset hour":    {"DAY_RESET_HOUR", "24"},
		"bad wind dir null": {"WIND_DIR_NULL", "repeat"},
		"bad latitude":      {"STATION_LATITUDE", "120"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			require.Error(t, err)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadToleratesMalformedOptionalURLs(t *testing.T) {
	// Optional features carry their URLs through the loader unexamined;
	// the wiring layer disables the feature when the value will not parse.
	t.Setenv("REMOTE_URL", "not a url")
	t.Setenv("DATABASE_URL", "also:/not/a/dsn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "not a url", cfg.Output.RemoteURL)
	assert.True(t, cfg.Database.Enabled())
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{}
	cfg.Pipeline.Timezone = "Not/AZone"
	assert.Equal(t, time.UTC, cfg.Location(testLogger()))

	cfg.Pipeline.Timezone = ""
	assert.Equal(t, time.UTC, cfg.Location(testLogger()))

	cfg.Pipeline.Timezone = "America/New_York"
	loc := cfg.Location(testLogger())
	require.NotNil(t, loc)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestSlogLevel(t *testing.T) {
	for lvl, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	} {
		cfg := &Config{LogLevel: lvl}
		assert.Equal(t, want, cfg.SlogLevel())
	}
}
