// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC process timezone to prevent drift bugs.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Process envconfig struct tags to populate the Config struct.
//  4. Validate the struct using go-playground/validator.
//  5. Resolve the station timezone, falling back to UTC with a warning.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// ConfigErrorType classifies configuration failures.
type ConfigErrorType string

const (
	ErrTypeEnvParse   ConfigErrorType = "ENV_PARSE"
	ErrTypeValidation ConfigErrorType = "VALIDATION"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load loads and validates the configuration from the environment. Required
// values fail loudly; optional features with invalid values are disabled by
// the caller via Location below or the per-feature Enabled accessors.
func Load() (*Config, error) {
	// All internal time handling is UTC; local time appears only where the
	// record format or day boundaries demand it.
	if err := os.Setenv("TZ", "UTC"); err != nil {
		return nil, &ConfigError{Type: ErrTypeEnvParse, Message: "failed to set TZ", Err: err}
	}
	time.Local = time.UTC

	// .env is a local-dev convenience; absence is the normal case elsewhere.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Type: ErrTypeEnvParse, Message: "failed to process environment", Err: err}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{Type: ErrTypeValidation, Message: "configuration validation failed", Err: err}
	}

	return &cfg, nil
}

// Location resolves the configured station timezone. An unknown zone name
// degrades to UTC with a single warning rather than failing startup.
func (c *Config) Location(logger *slog.Logger) *time.Location {
	if c.Pipeline.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		logger.Warn("unknown station timezone; falling back to UTC",
			"timezone", c.Pipeline.Timezone,
			"error", err.Error(),
		)
		return time.UTC
	}
	return loc
}

// SlogLevel maps the configured log level onto slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
