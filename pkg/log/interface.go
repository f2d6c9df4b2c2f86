// Package log provides the structured logging interface used across agriml.
//
// The interface is slog-compatible and backend-agnostic. The default backend is
// zerolog (see NewZerologProvider); tests use TestLogger to capture output.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("training").With(
//	    log.PhaseKey, log.PhaseTraining,
//	)
//	logger.Info("fold finished",
//	    log.FoldKey, 3,
//	    log.AccuracyKey, 0.91,
//	    log.BestIterationKey, 412,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. Implementations treat an error value
// passed as the first field of Error specially and record its stack trace.
type Logger interface {
	// Debug logs detailed diagnostic information, such as per-iteration scores.
	Debug(msg string, fields ...any)

	// Info logs general progress of the pipeline.
	Info(msg string, fields ...any)

	// Warn logs recoverable problems: dropped leakage columns, unknown config
	// keys, an unavailable search engine.
	Warn(msg string, fields ...any)

	// Error logs a failure. If the first field is an error it is attached
	// together with its stack trace.
	//
	// Example:
	//   logger.Error("artifact save failed", err, log.VersionKey, key)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	// Use it to skip building expensive fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers. It allows dependency injection of a
// different backend in tests.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
