// Package logger defines the structured logging interface used across the SDK
// and its implementations.
package logger

// Logger defines a structured logging interface.
type Logger interface {
	// Debugw logs a debug-level message with optional structured context.
	Debugw(msg string, keysAndValues ...any)

	// Infow logs an info-level message with optional structured context.
	Infow(msg string, keysAndValues ...any)

	// Warnw logs a warning-level message with optional structured context.
	Warnw(msg string, keysAndValues ...any)

	// Errorw logs an error-level message with optional structured context.
	Errorw(msg string, keysAndValues ...any)

	// Fatalw logs a fatal-level message with optional structured context and then terminates the application.
	Fatalw(msg string, keysAndValues ...any)

	// Context enrichment methods return a new logger instance with additional persistent context.

	// With adds arbitrary key-value pairs to the logger's context.
	With(keysAndValues ...any) Logger

	// WithComponent adds a component label (e.g., "requestor", "renewer") to categorize log output.
	WithComponent(name string) Logger

	// WithStructureSet adds the structure set identifier a log line refers to.
	WithStructureSet(id string) Logger
}
