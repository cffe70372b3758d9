package types

import (
	"log/slog"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used where a narrow seam
// is wanted for tests. Most components take *slog.Logger directly; this
// interface exists for the pieces (telemetry, sinks) that tests drive with
// a recording fake.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// SlogLogger adapts *slog.Logger to the Logger interface.
type SlogLogger struct {
	L *slog.Logger
}

// Info logs at info level.
func (s SlogLogger) Info(msg string, args ...any) { s.L.Info(msg, args...) }

// Error logs at error level.
func (s SlogLogger) Error(msg string, args ...any) { s.L.Error(msg, args...) }

// Warn logs at warn level.
func (s SlogLogger) Warn(msg string, args ...any) { s.L.Warn(msg, args...) }

// With returns a Logger with the given attributes attached.
func (s SlogLogger) With(args ...any) Logger { return SlogLogger{L: s.L.With(args...)} }
