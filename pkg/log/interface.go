// Package log provides the structured logging interface used across salescope.
//
// The interface is slog-shaped so call sites stay backend agnostic. The
// default backend is zerolog (see logger.go); tests use TestLogger, which
// records JSON lines in memory.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("compare").With(
//	    log.ModelNameKey, "decision_tree",
//	    log.RunIDKey, runID,
//	)
//	logger.Info("Fold completed",
//	    log.FoldKey, 2,
//	    log.RMSEKey, 12.4,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs a debug-level message with optional key-value fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key-value fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key-value fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error it is
	// attached under the "error" key together with its stack trace, and the
	// remaining fields are treated as key-value pairs.
	//
	//	logger.Error("Model training failed",
	//	    err,
	//	    log.OperationKey, log.OperationTrain,
	//	)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
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

// LoggerProvider creates loggers. Components that accept a provider can be
// tested with TestLoggerProvider.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
