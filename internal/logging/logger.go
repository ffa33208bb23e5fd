// Package logging defines a minimal structured-logging interface used across
// the project. SlogLogger backs the production JSON output and ZerologLogger
// the human-readable console output used in debug posture.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key-value pairs, e.g.:
//
//	log.Info(ctx, "starting server", "addr", addr, "mode", mode)
type Logger interface {
	// Debug logs diagnostic detail that is noisy in production.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}

// New returns the logger for the given posture: zerolog console output when
// debug is set, slog JSON to stdout otherwise.
func New(debug bool) Logger {
	if debug {
		return NewConsoleLogger()
	}
	return NewJSONLogger()
}
