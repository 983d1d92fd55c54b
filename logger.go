package ouro

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with heap-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithID adds an object ID field to the logger.
func (l *Logger) WithID(id ID) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", uint64(id)),
	}
}

// WithPass adds a pass number field to the logger.
func (l *Logger) WithPass(pass uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("pass", pass),
	}
}

// LogAlloc logs an allocation.
func (l *Logger) LogAlloc(id ID, typeName string, err error) {
	if err != nil {
		l.Error("alloc failed",
			"type", typeName,
			"error", err,
		)
	} else {
		l.Debug("object allocated",
			"id", uint64(id),
			"type", typeName,
		)
	}
}

// LogFree logs the finalize+free of a single object.
func (l *Logger) LogFree(id ID, typeName string) {
	l.Debug("object freed",
		"id", uint64(id),
		"type", typeName,
	)
}

// LogCollectStart logs the start of a collection pass.
func (l *Logger) LogCollectStart(pass uint64, live int) {
	l.Debug("collect started",
		"pass", pass,
		"live", live,
	)
}

// LogCollectEnd logs the completion of a collection pass.
func (l *Logger) LogCollectEnd(pass uint64, r Report, elapsed time.Duration) {
	l.Info("collect completed",
		"pass", pass,
		"traced", r.Traced,
		"held", r.Held,
		"dropped", r.Dropped,
		"elapsed", elapsed,
	)
}

// LogClose logs heap teardown. Objects still live at close were swept
// unconditionally, so a non-zero count usually means handles were not
// dropped by the program.
func (l *Logger) LogClose(swept int) {
	if swept > 0 {
		l.Warn("heap closed with live objects",
			"swept", swept,
		)
	} else {
		l.Info("heap closed")
	}
}
